package transaction

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/http/respond"
	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

// Ledger applies transaction writes to balances.
type Ledger interface {
	Process(ctx context.Context, params ledger.PostParams) (*transaction.Transaction, error)
	Amend(ctx context.Context, tx *transaction.Transaction) (*transaction.Transaction, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	svc    *transaction.Service
	ledger Ledger
}

func NewHandler(svc *transaction.Service, ledger Ledger) *Handler {
	return &Handler{svc: svc, ledger: ledger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Put("/", h.update)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
}

type transactionRequest struct {
	ID            *uuid.UUID       `json:"id"`
	AccountID     uuid.UUID        `json:"idUserAccount" validate:"required"`
	Type          string           `json:"type" validate:"required"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	EffectiveDate transaction.Date `json:"effectiveDate"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.DecodeError(w, err)
		return
	}

	if req.ID != nil {
		respond.Error(w, http.StatusBadRequest, "a new transaction cannot already have an id")
		return
	}

	typ, err := transaction.ParseType(req.Type)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.ledger.Process(r.Context(), ledger.PostParams{
		AccountID:     req.AccountID,
		Type:          typ,
		Amount:        *req.Amount,
		EffectiveDate: req.EffectiveDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/transactions/"+tx.ID.String())
	respond.JSON(w, http.StatusCreated, toResponse(tx))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.DecodeError(w, err)
		return
	}

	if req.ID == nil {
		respond.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	typ, err := transaction.ParseType(req.Type)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	tx, err := h.ledger.Amend(r.Context(), &transaction.Transaction{
		ID:            *req.ID,
		AccountID:     req.AccountID,
		Type:          typ,
		Amount:        *req.Amount,
		EffectiveDate: req.EffectiveDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(tx))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := transaction.ListFilter{}
	query := r.URL.Query()

	if s := query.Get("idUserAccount"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid idUserAccount")
			return
		}

		filter.AccountID = &id
	}

	if s := query.Get("from"); s != "" {
		d, err := transaction.ParseDate(s)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid from date")
			return
		}

		filter.StartDate = &d
	}

	if s := query.Get("to"); s != "" {
		d, err := transaction.ParseDate(s)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid to date")
			return
		}

		filter.EndDate = &d
	}

	txs, err := h.svc.List(r.Context(), filter)
	if err != nil {
		respond.Internal(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(txs))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	tx, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(tx))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.ledger.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transaction.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, balance.ErrNegative),
		errors.Is(err, transaction.ErrInvalidType),
		errors.Is(err, transaction.ErrInvalidAmount):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		respond.Internal(w, err)
	}
}
