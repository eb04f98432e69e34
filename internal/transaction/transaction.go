package transaction

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("transaction not found")
	ErrInvalidType   = errors.New("transaction type must be debit or credit")
	ErrInvalidAmount = errors.New("transaction amount cannot be negative")
)

// Type represents the direction of a transaction (debit or credit).
type Type string

const (
	TypeDebit  Type = "debit"
	TypeCredit Type = "credit"
)

// ParseType matches s against the known types ignoring case.
func ParseType(s string) (Type, error) {
	switch {
	case strings.EqualFold(s, string(TypeDebit)):
		return TypeDebit, nil
	case strings.EqualFold(s, string(TypeCredit)):
		return TypeCredit, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// Opposite returns the type that undoes t. Unknown types map to themselves.
func (t Type) Opposite() Type {
	switch t {
	case TypeDebit:
		return TypeCredit
	case TypeCredit:
		return TypeDebit
	}

	return t
}

// Transaction is a single debit or credit against an account.
type Transaction struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	Type          Type
	Amount        decimal.Decimal
	EffectiveDate Date
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}
