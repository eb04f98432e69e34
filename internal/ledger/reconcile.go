package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
)

// Drift is a balance whose stored total disagrees with its transactions.
type Drift struct {
	BalanceID uuid.UUID
	AccountID uuid.UUID
	Stored    decimal.Decimal
	Computed  decimal.Decimal
	Fixed     bool
}

// Reconcile compares every stored balance with the total computed from its
// transactions. With fix set, drifted balances are rewritten to the computed
// total unless that total is negative.
func (p *Processor) Reconcile(ctx context.Context, fix bool) ([]Drift, error) {
	start, outcome := time.Now(), OutcomeApplied
	defer func() { p.observe(OperationReconcile, outcome, start) }()

	totals, err := p.repo.Totals(ctx)
	if err != nil {
		outcome = OutcomeFailed
		return nil, fmt.Errorf("computing totals: %w", err)
	}

	var drifts []Drift

	for _, t := range totals {
		if t.Stored.Equal(t.Computed) {
			continue
		}

		d := Drift{
			BalanceID: t.BalanceID,
			AccountID: t.AccountID,
			Stored:    t.Stored,
			Computed:  t.Computed,
		}

		if fix {
			fixed, err := p.correct(ctx, t.AccountID)
			if err != nil {
				outcome = OutcomeFailed
				return drifts, fmt.Errorf("correcting balance %s: %w", t.BalanceID, err)
			}

			d.Fixed = fixed
		}

		drifts = append(drifts, d)
	}

	return drifts, nil
}

// correct recomputes the total under the balance lock, so postings that
// landed after Totals ran are included.
func (p *Processor) correct(ctx context.Context, accountID uuid.UUID) (bool, error) {
	utx, err := p.repo.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning correction: %w", err)
	}
	defer func() { _ = utx.Rollback() }()

	b, err := utx.LockBalance(ctx, accountID)
	if errors.Is(err, balance.ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("locking balance: %w", err)
	}

	computed, err := utx.SumTransactions(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("summing transactions: %w", err)
	}

	if computed.IsNegative() {
		slog.Warn("computed total is negative, leaving balance as is",
			"account_id", accountID, "computed", computed.String())
		return false, nil
	}

	if computed.Equal(b.Total) {
		return false, nil
	}

	b.Total = computed

	if err := utx.SaveBalance(ctx, b); err != nil {
		return false, fmt.Errorf("saving balance: %w", err)
	}

	if err := utx.Commit(); err != nil {
		return false, fmt.Errorf("committing correction: %w", err)
	}

	p.publish(ctx, EventReconciled, b, nil)

	return true, nil
}
