package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

const (
	EventPosted     = "posted"
	EventAmended    = "amended"
	EventRemoved    = "removed"
	EventReconciled = "reconciled"
)

const (
	OperationPost      = "post"
	OperationAmend     = "amend"
	OperationRemove    = "remove"
	OperationReconcile = "reconcile"
)

const (
	OutcomeApplied   = "applied"
	OutcomeUnapplied = "unapplied"
	OutcomeFallback  = "fallback"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Event describes a committed change to a balance.
type Event struct {
	Kind          string          `json:"kind"`
	AccountID     uuid.UUID       `json:"accountId"`
	BalanceID     uuid.UUID       `json:"balanceId"`
	Total         decimal.Decimal `json:"total"`
	TransactionID *uuid.UUID      `json:"transactionId,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Recorder interface {
	ObservePosting(operation, outcome string, elapsed time.Duration)
}

type Option func(*Processor)

func WithPublisher(p Publisher) Option {
	return func(pr *Processor) { pr.publisher = p }
}

func WithRecorder(r Recorder) Option {
	return func(pr *Processor) { pr.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(pr *Processor) { pr.now = now }
}

// Processor keeps balances in step with the transactions posted against
// them. Every balance change happens under a row lock taken through the
// Repository's unit of work.
type Processor struct {
	repo      Repository
	publisher Publisher
	recorder  Recorder
	now       func() time.Time
}

func NewProcessor(repo Repository, opts ...Option) *Processor {
	p := &Processor{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

type PostParams struct {
	AccountID     uuid.UUID
	Type          transaction.Type
	Amount        decimal.Decimal
	EffectiveDate transaction.Date
}

// Process records a new transaction and applies it to the account's balance.
//
// A debit that would take the balance below zero fails with
// balance.ErrNegative and nothing is stored. An unknown type fails with
// transaction.ErrInvalidType. An account without a balance
// gets the transaction stored with no effect. Any other failure while
// adjusting the balance is logged and the transaction is stored on its own.
func (p *Processor) Process(ctx context.Context, params PostParams) (*transaction.Transaction, error) {
	start, outcome := time.Now(), OutcomeApplied
	defer func() { p.observe(OperationPost, outcome, start) }()

	if params.Amount.IsNegative() {
		outcome = OutcomeRejected
		return nil, transaction.ErrInvalidAmount
	}

	typ, err := transaction.ParseType(string(params.Type))
	if err != nil {
		outcome = OutcomeRejected
		return nil, err
	}

	params.Type = typ

	tx := &transaction.Transaction{
		ID:            uuid.New(),
		AccountID:     params.AccountID,
		Type:          params.Type,
		Amount:        params.Amount,
		EffectiveDate: params.EffectiveDate,
	}

	utx, err := p.repo.Begin(ctx)
	if err != nil {
		outcome = OutcomeFailed
		return nil, fmt.Errorf("beginning posting: %w", err)
	}
	defer func() { _ = utx.Rollback() }()

	b, err := p.post(ctx, utx, tx)
	if errors.Is(err, balance.ErrNegative) {
		outcome = OutcomeRejected
		return nil, err
	}

	if err != nil {
		slog.Error("failed to refresh balance, storing transaction without it",
			"account_id", tx.AccountID, "error", err)

		_ = utx.Rollback()

		if err := p.repo.CreateTransaction(ctx, tx); err != nil {
			outcome = OutcomeFailed
			return nil, fmt.Errorf("creating transaction: %w", err)
		}

		outcome = OutcomeFallback

		return tx, nil
	}

	if err := utx.CreateTransaction(ctx, tx); err != nil {
		outcome = OutcomeFailed
		return nil, fmt.Errorf("creating transaction: %w", err)
	}

	if err := utx.Commit(); err != nil {
		outcome = OutcomeFailed
		return nil, fmt.Errorf("committing posting: %w", err)
	}

	if b == nil {
		outcome = OutcomeUnapplied
		return tx, nil
	}

	p.publish(ctx, EventPosted, b, &tx.ID)

	return tx, nil
}

func (p *Processor) post(ctx context.Context, utx Tx, tx *transaction.Transaction) (*balance.Balance, error) {
	b, err := utx.LockBalance(ctx, tx.AccountID)
	if errors.Is(err, balance.ErrNotFound) {
		slog.Warn("account has no balance, transaction stored without effect", "account_id", tx.AccountID)
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("locking balance: %w", err)
	}

	delta, err := effect(tx.Type, tx.Amount)
	if err != nil {
		return nil, err
	}

	if err := adjust(b, delta); err != nil {
		return nil, err
	}

	if err := utx.SaveBalance(ctx, b); err != nil {
		return nil, fmt.Errorf("saving balance: %w", err)
	}

	return b, nil
}

// Amend replaces a stored transaction, reverting its old effect and applying
// the new one in a single unit of work. The amendment fails with
// balance.ErrNegative when any touched balance would end up below zero.
func (p *Processor) Amend(ctx context.Context, updated *transaction.Transaction) (*transaction.Transaction, error) {
	start, outcome := time.Now(), OutcomeApplied
	defer func() { p.observe(OperationAmend, outcome, start) }()

	if updated.Amount.IsNegative() {
		outcome = OutcomeRejected
		return nil, transaction.ErrInvalidAmount
	}

	typ, err := transaction.ParseType(string(updated.Type))
	if err != nil {
		outcome = OutcomeRejected
		return nil, err
	}

	updated.Type = typ

	utx, err := p.repo.Begin(ctx)
	if err != nil {
		outcome = OutcomeFailed
		return nil, fmt.Errorf("beginning amendment: %w", err)
	}
	defer func() { _ = utx.Rollback() }()

	current, err := utx.LockTransaction(ctx, updated.ID)
	if err != nil {
		outcome = OutcomeFailed
		if errors.Is(err, transaction.ErrNotFound) {
			outcome = OutcomeRejected
		}

		return nil, fmt.Errorf("locking transaction: %w", err)
	}

	deltas := map[uuid.UUID]decimal.Decimal{}

	revert, err := effect(current.Type.Opposite(), current.Amount)
	if err != nil {
		outcome = OutcomeFailed
		return nil, fmt.Errorf("reverting transaction: %w", err)
	}

	deltas[current.AccountID] = revert

	next, _ := effect(updated.Type, updated.Amount)
	deltas[updated.AccountID] = deltas[updated.AccountID].Add(next)

	touched, err := p.settle(ctx, utx, deltas)
	if err != nil {
		outcome = OutcomeFailed
		if errors.Is(err, balance.ErrNegative) {
			outcome = OutcomeRejected
		}

		return nil, err
	}

	updated.CreatedAt = current.CreatedAt

	if err := utx.UpdateTransaction(ctx, updated); err != nil {
		outcome = OutcomeFailed
		return nil, fmt.Errorf("updating transaction: %w", err)
	}

	if err := utx.Commit(); err != nil {
		outcome = OutcomeFailed
		return nil, fmt.Errorf("committing amendment: %w", err)
	}

	for _, b := range touched {
		p.publish(ctx, EventAmended, b, &updated.ID)
	}

	return updated, nil
}

// Remove deletes a transaction and reverts its effect on the balance.
// Removing a transaction that does not exist is not an error.
func (p *Processor) Remove(ctx context.Context, id uuid.UUID) error {
	start, outcome := time.Now(), OutcomeApplied
	defer func() { p.observe(OperationRemove, outcome, start) }()

	utx, err := p.repo.Begin(ctx)
	if err != nil {
		outcome = OutcomeFailed
		return fmt.Errorf("beginning removal: %w", err)
	}
	defer func() { _ = utx.Rollback() }()

	current, err := utx.LockTransaction(ctx, id)
	if errors.Is(err, transaction.ErrNotFound) {
		outcome = OutcomeUnapplied
		return nil
	}

	if err != nil {
		outcome = OutcomeFailed
		return fmt.Errorf("locking transaction: %w", err)
	}

	revert, err := effect(current.Type.Opposite(), current.Amount)
	if err != nil {
		outcome = OutcomeFailed
		return fmt.Errorf("reverting transaction: %w", err)
	}

	touched, err := p.settle(ctx, utx, map[uuid.UUID]decimal.Decimal{current.AccountID: revert})
	if err != nil {
		outcome = OutcomeFailed
		if errors.Is(err, balance.ErrNegative) {
			outcome = OutcomeRejected
		}

		return err
	}

	if err := utx.DeleteTransaction(ctx, id); err != nil {
		outcome = OutcomeFailed
		return fmt.Errorf("deleting transaction: %w", err)
	}

	if err := utx.Commit(); err != nil {
		outcome = OutcomeFailed
		return fmt.Errorf("committing removal: %w", err)
	}

	for _, b := range touched {
		p.publish(ctx, EventRemoved, b, &id)
	}

	return nil
}

// settle locks the balance of every account in deltas, in a stable order so
// concurrent amendments cannot deadlock, and applies the deltas to them.
// Accounts without a balance are skipped.
func (p *Processor) settle(ctx context.Context, utx Tx, deltas map[uuid.UUID]decimal.Decimal) ([]*balance.Balance, error) {
	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}

	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	var touched []*balance.Balance

	for _, id := range ids {
		b, err := utx.LockBalance(ctx, id)
		if errors.Is(err, balance.ErrNotFound) {
			slog.Warn("account has no balance, skipping", "account_id", id)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("locking balance: %w", err)
		}

		if deltas[id].IsZero() {
			continue
		}

		if err := adjust(b, deltas[id]); err != nil {
			return nil, err
		}

		if err := utx.SaveBalance(ctx, b); err != nil {
			return nil, fmt.Errorf("saving balance: %w", err)
		}

		touched = append(touched, b)
	}

	return touched, nil
}

// effect returns the signed change a transaction makes to a balance.
func effect(t transaction.Type, amount decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case transaction.TypeDebit:
		return amount.Neg(), nil
	case transaction.TypeCredit:
		return amount, nil
	}

	return decimal.Zero, fmt.Errorf("%w: %q", transaction.ErrInvalidType, t)
}

// adjust refuses any decrease that would leave the total below zero.
func adjust(b *balance.Balance, delta decimal.Decimal) error {
	next := b.Total.Add(delta)
	if delta.IsNegative() && next.IsNegative() {
		return balance.ErrNegative
	}

	b.Total = next

	return nil
}

func (p *Processor) publish(ctx context.Context, kind string, b *balance.Balance, txID *uuid.UUID) {
	if p.publisher == nil {
		return
	}

	e := Event{
		Kind:          kind,
		AccountID:     b.AccountID,
		BalanceID:     b.ID,
		Total:         b.Total,
		TransactionID: txID,
		OccurredAt:    p.now().UTC(),
	}

	if err := p.publisher.Publish(ctx, e); err != nil {
		slog.Warn("failed to publish balance event", "kind", kind, "account_id", b.AccountID, "error", err)
	}
}

func (p *Processor) observe(operation, outcome string, start time.Time) {
	if p.recorder == nil {
		return
	}

	p.recorder.ObservePosting(operation, outcome, time.Since(start))
}
