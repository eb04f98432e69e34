package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// Columns is the select list ScanBalance expects.
const Columns = `id, account_id, total, created_at, updated_at`

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Scanner is satisfied by both *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanBalance reads a row selected with Columns.
func ScanBalance(s Scanner) (*balance.Balance, error) {
	var b balance.Balance
	if err := s.Scan(&b.ID, &b.AccountID, &b.Total, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}

	return &b, nil
}

// TranslateError maps constraint violations onto balance sentinels.
func TranslateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return balance.ErrDuplicate
	case pgCheckViolation:
		return balance.ErrNegative
	}

	return err
}

func (s *Store) CreateBalance(ctx context.Context, b *balance.Balance) error {
	query := `
		INSERT INTO balances (account_id, total, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, created_at
	`

	if err := s.db.QueryRowContext(ctx, query, b.AccountID, b.Total).Scan(&b.ID, &b.CreatedAt); err != nil {
		if translated := TranslateError(err); translated != err {
			return translated
		}

		return fmt.Errorf("creating balance: %w", err)
	}

	return nil
}

func (s *Store) GetBalance(ctx context.Context, id uuid.UUID) (*balance.Balance, error) {
	query := `SELECT ` + Columns + ` FROM balances WHERE id = $1`

	b, err := ScanBalance(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, balance.ErrNotFound
		}

		return nil, fmt.Errorf("getting balance: %w", err)
	}

	return b, nil
}

func (s *Store) GetBalanceByAccount(ctx context.Context, accountID uuid.UUID) (*balance.Balance, error) {
	query := `SELECT ` + Columns + ` FROM balances WHERE account_id = $1`

	b, err := ScanBalance(s.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, balance.ErrNotFound
		}

		return nil, fmt.Errorf("getting balance by account: %w", err)
	}

	return b, nil
}

func (s *Store) ListBalances(ctx context.Context) ([]*balance.Balance, error) {
	query := `SELECT ` + Columns + ` FROM balances ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing balances: %w", err)
	}
	defer rows.Close()

	var balances []*balance.Balance

	for rows.Next() {
		b, err := ScanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning balance: %w", err)
		}

		balances = append(balances, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating balance rows: %w", err)
	}

	return balances, nil
}

// UpdateBalance overwrites account reference and total of an existing
// balance.
func (s *Store) UpdateBalance(ctx context.Context, b *balance.Balance) error {
	query := `
		UPDATE balances
		SET account_id = $1, total = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query, b.AccountID, b.Total, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return balance.ErrNotFound
		}

		if translated := TranslateError(err); translated != err {
			return translated
		}

		return fmt.Errorf("updating balance: %w", err)
	}

	return nil
}

func (s *Store) DeleteBalance(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM balances WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting balance: %w", err)
	}

	return nil
}
