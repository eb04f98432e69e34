package balance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=balance
type Repository interface {
	CreateBalance(ctx context.Context, b *Balance) error
	GetBalance(ctx context.Context, id uuid.UUID) (*Balance, error)
	GetBalanceByAccount(ctx context.Context, accountID uuid.UUID) (*Balance, error)
	ListBalances(ctx context.Context) ([]*Balance, error)
	UpdateBalance(ctx context.Context, b *Balance) error
	DeleteBalance(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	AccountID uuid.UUID
	Total     decimal.Decimal
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Balance, error) {
	if params.Total.IsNegative() {
		return nil, ErrNegative
	}

	b := &Balance{
		AccountID: params.AccountID,
		Total:     params.Total,
	}
	if err := s.repo.CreateBalance(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Balance, error) {
	return s.repo.GetBalance(ctx, id)
}

// GetByAccount is the secondary lookup of a balance by its owning account.
func (s *Service) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	return s.repo.GetBalanceByAccount(ctx, accountID)
}

func (s *Service) List(ctx context.Context) ([]*Balance, error) {
	return s.repo.ListBalances(ctx)
}

// Update writes the balance directly, outside the ledger. The non-negative
// rule still applies.
func (s *Service) Update(ctx context.Context, b *Balance) error {
	if b.Total.IsNegative() {
		return ErrNegative
	}

	return s.repo.UpdateBalance(ctx, b)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteBalance(ctx, id)
}
