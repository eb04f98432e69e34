package balance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
)

type balanceResponse struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"accountId"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

func toResponse(b *balance.Balance) balanceResponse {
	return balanceResponse{
		ID:        b.ID,
		AccountID: b.AccountID,
		Total:     b.Total,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toResponseList(balances []*balance.Balance) []balanceResponse {
	resp := make([]balanceResponse, len(balances))
	for i, b := range balances {
		resp[i] = toResponse(b)
	}

	return resp
}
