package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

type transactionResponse struct {
	ID            uuid.UUID        `json:"id"`
	AccountID     uuid.UUID        `json:"idUserAccount"`
	Type          transaction.Type `json:"type"`
	Amount        decimal.Decimal  `json:"amount"`
	EffectiveDate transaction.Date `json:"effectiveDate"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     *time.Time       `json:"updatedAt,omitempty"`
}

func toResponse(tx *transaction.Transaction) transactionResponse {
	return transactionResponse{
		ID:            tx.ID,
		AccountID:     tx.AccountID,
		Type:          tx.Type,
		Amount:        tx.Amount,
		EffectiveDate: tx.EffectiveDate,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
	}
}

func toResponseList(txs []*transaction.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toResponse(tx)
	}

	return resp
}
