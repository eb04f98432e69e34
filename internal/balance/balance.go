package balance

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("balance not found")

	// ErrDuplicate is returned when an account already has a balance.
	ErrDuplicate = errors.New("account already has a balance")

	// ErrNegative is returned whenever a write would leave a total below zero.
	ErrNegative = errors.New("balance can't reach negative values")
)

// Balance is the running total of one account.
type Balance struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt *time.Time
}
