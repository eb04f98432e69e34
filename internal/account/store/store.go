package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/accountbook/internal/account"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: id, name, disabled, created_at, updated_at
func scanAccount(s scanner) (*account.Account, error) {
	var a account.Account
	if err := s.Scan(&a.ID, &a.Name, &a.Disabled, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	return &a, nil
}

// CreateAccount inserts the account and opens its zero balance in one
// database transaction, so an account never exists without a balance.
func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	accountQuery := `
		INSERT INTO accounts (name, disabled, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, created_at
	`
	if err := dbTx.QueryRowContext(ctx, accountQuery, a.Name, a.Disabled).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("creating account: %w", err)
	}

	balanceQuery := `
		INSERT INTO balances (account_id, total, created_at)
		VALUES ($1, 0, NOW())
	`
	if _, err := dbTx.ExecContext(ctx, balanceQuery, a.ID); err != nil {
		return fmt.Errorf("opening balance: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT id, name, disabled, created_at, updated_at FROM accounts WHERE id = $1`

	a, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}

		return nil, fmt.Errorf("getting account: %w", err)
	}

	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*account.Account, error) {
	query := `SELECT id, name, disabled, created_at, updated_at FROM accounts ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating account rows: %w", err)
	}

	return accounts, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	query := `
		UPDATE accounts
		SET name = $1, disabled = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query, a.Name, a.Disabled, a.ID).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.ErrNotFound
		}

		return fmt.Errorf("updating account: %w", err)
	}

	return nil
}

// DeleteAccount removes the account only. Its balance and transactions are
// left in place and can be removed through their own endpoints.
func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	return nil
}
