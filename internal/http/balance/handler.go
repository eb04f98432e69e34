package balance

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/http/respond"
)

type Handler struct {
	svc *balance.Service
}

func NewHandler(svc *balance.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Put("/", h.update)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
}

type balanceRequest struct {
	ID        *uuid.UUID      `json:"id"`
	AccountID uuid.UUID       `json:"accountId" validate:"required"`
	Total     decimal.Decimal `json:"total"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.DecodeError(w, err)
		return
	}

	if req.ID != nil {
		respond.Error(w, http.StatusBadRequest, "a new balance cannot already have an id")
		return
	}

	b, err := h.svc.Create(r.Context(), balance.CreateParams{AccountID: req.AccountID, Total: req.Total})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", "/api/balances/"+b.ID.String())
	respond.JSON(w, http.StatusCreated, toResponse(b))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.DecodeError(w, err)
		return
	}

	if req.ID == nil {
		respond.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	b := &balance.Balance{ID: *req.ID, AccountID: req.AccountID, Total: req.Total}

	if err := h.svc.Update(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(b))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	balances, err := h.svc.List(r.Context())
	if err != nil {
		respond.Internal(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(balances))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	b, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(b))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		respond.Internal(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, balance.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "balance not found")
	case errors.Is(err, balance.ErrNegative):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, balance.ErrDuplicate):
		respond.Error(w, http.StatusConflict, err.Error())
	default:
		respond.Internal(w, err)
	}
}
