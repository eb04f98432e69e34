package account

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/accountbook/internal/account"
	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/http/respond"
)

type Handler struct {
	svc      *account.Service
	balances *balance.Service
}

func NewHandler(svc *account.Service, balances *balance.Service) *Handler {
	return &Handler{svc: svc, balances: balances}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Put("/", h.update)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/balance", h.getBalance)
	r.Delete("/{id}", h.delete)
}

type accountRequest struct {
	ID       *uuid.UUID `json:"id"`
	Name     string     `json:"name" validate:"max=255"`
	Disabled bool       `json:"disabled"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.DecodeError(w, err)
		return
	}

	if req.ID != nil {
		respond.Error(w, http.StatusBadRequest, "a new account cannot already have an id")
		return
	}

	a, err := h.svc.Create(r.Context(), account.CreateParams{Name: req.Name, Disabled: req.Disabled})
	if err != nil {
		respond.Internal(w, err)
		return
	}

	w.Header().Set("Location", "/api/accounts/"+a.ID.String())
	respond.JSON(w, http.StatusCreated, toResponse(a))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.DecodeError(w, err)
		return
	}

	if req.ID == nil {
		respond.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	a := &account.Account{ID: *req.ID, Name: req.Name, Disabled: req.Disabled}

	if err := h.svc.Update(r.Context(), a); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "account not found")
			return
		}

		respond.Internal(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.List(r.Context())
	if err != nil {
		respond.Internal(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(accounts))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	a, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "account not found")
			return
		}

		respond.Internal(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return
	}

	b, err := h.balances.GetByAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, balance.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "balance not found")
			return
		}

		respond.Internal(w, err)

		return
	}

	respond.JSON(w, http.StatusOK, toBalanceResponse(b))
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
