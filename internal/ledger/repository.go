package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

//go:generate mockgen -source=repository.go -destination=repository_mock.go -package=ledger
type Repository interface {
	// Begin opens a unit of work. Locks taken through the returned Tx are
	// held until Commit or Rollback.
	Begin(ctx context.Context) (Tx, error)

	// CreateTransaction inserts a transaction outside any unit of work.
	CreateTransaction(ctx context.Context, tx *transaction.Transaction) error

	// Totals lists every balance next to the total recomputed from its
	// transactions.
	Totals(ctx context.Context) ([]Totals, error)
}

type Tx interface {
	// LockBalance returns the balance of an account and holds it until the
	// unit of work ends. It returns balance.ErrNotFound when the account has
	// none.
	LockBalance(ctx context.Context, accountID uuid.UUID) (*balance.Balance, error)
	SaveBalance(ctx context.Context, b *balance.Balance) error
	SumTransactions(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)

	LockTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	CreateTransaction(ctx context.Context, tx *transaction.Transaction) error
	UpdateTransaction(ctx context.Context, tx *transaction.Transaction) error
	DeleteTransaction(ctx context.Context, id uuid.UUID) error

	Commit() error
	Rollback() error
}

type Totals struct {
	BalanceID uuid.UUID
	AccountID uuid.UUID
	Stored    decimal.Decimal
	Computed  decimal.Decimal
}
