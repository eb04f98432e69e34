package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	balancestore "github.com/MrJamesThe3rd/accountbook/internal/balance/store"
	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
	transactionstore "github.com/MrJamesThe3rd/accountbook/internal/transaction/store"
)

// signedAmount turns a transaction row into its effect on the balance.
const signedAmount = `CASE type WHEN 'credit' THEN amount WHEN 'debit' THEN -amount ELSE 0 END`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Begin(ctx context.Context) (ledger.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return &Tx{tx: tx}, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	return insertTransaction(ctx, s.db, tx)
}

func (s *Store) Totals(ctx context.Context) ([]ledger.Totals, error) {
	query := `
		SELECT b.id, b.account_id, b.total, COALESCE(SUM(t.signed), 0)
		FROM balances b
		LEFT JOIN (
			SELECT id_user_account, ` + signedAmount + ` AS signed FROM transactions
		) t ON t.id_user_account = b.account_id
		GROUP BY b.id, b.account_id, b.total, b.created_at
		ORDER BY b.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("computing totals: %w", err)
	}
	defer rows.Close()

	var totals []ledger.Totals

	for rows.Next() {
		var t ledger.Totals
		if err := rows.Scan(&t.BalanceID, &t.AccountID, &t.Stored, &t.Computed); err != nil {
			return nil, fmt.Errorf("scanning totals: %w", err)
		}

		totals = append(totals, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating totals rows: %w", err)
	}

	return totals, nil
}

// Tx is a unit of work backed by a database transaction. Row locks taken
// with SELECT ... FOR UPDATE are released on Commit or Rollback.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) LockBalance(ctx context.Context, accountID uuid.UUID) (*balance.Balance, error) {
	query := `SELECT ` + balancestore.Columns + ` FROM balances WHERE account_id = $1 FOR UPDATE`

	b, err := balancestore.ScanBalance(t.tx.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, balance.ErrNotFound
		}

		return nil, fmt.Errorf("locking balance: %w", err)
	}

	return b, nil
}

func (t *Tx) SaveBalance(ctx context.Context, b *balance.Balance) error {
	query := `UPDATE balances SET total = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at`

	if err := t.tx.QueryRowContext(ctx, query, b.Total, b.ID).Scan(&b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return balance.ErrNotFound
		}

		if translated := balancestore.TranslateError(err); translated != err {
			return translated
		}

		return fmt.Errorf("saving balance: %w", err)
	}

	return nil
}

func (t *Tx) SumTransactions(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(` + signedAmount + `), 0) FROM transactions WHERE id_user_account = $1`

	var sum decimal.Decimal
	if err := t.tx.QueryRowContext(ctx, query, accountID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("summing transactions: %w", err)
	}

	return sum, nil
}

func (t *Tx) LockTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionstore.Columns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	tx, err := transactionstore.ScanTransaction(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("locking transaction: %w", err)
	}

	return tx, nil
}

func (t *Tx) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	return insertTransaction(ctx, t.tx, tx)
}

func (t *Tx) UpdateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET id_user_account = $1, type = $2, amount = $3, effective_date = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING created_at, updated_at
	`

	err := t.tx.QueryRowContext(ctx, query, tx.AccountID, string(tx.Type), tx.Amount, tx.EffectiveDate, tx.ID).
		Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return transaction.ErrNotFound
		}

		return fmt.Errorf("updating transaction: %w", err)
	}

	return nil
}

func (t *Tx) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}

	return nil
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback is safe to call after Commit.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}

	return nil
}

func insertTransaction(ctx context.Context, q querier, tx *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (id, id_user_account, type, amount, effective_date, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`

	err := q.QueryRowContext(ctx, query, tx.ID, tx.AccountID, string(tx.Type), tx.Amount, tx.EffectiveDate).
		Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}

	return nil
}
