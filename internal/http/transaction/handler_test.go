package transaction_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	transactionhttp "github.com/MrJamesThe3rd/accountbook/internal/http/transaction"
	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

// fakeLedger records what it was asked to do and answers with err when set.
type fakeLedger struct {
	err     error
	posted  []ledger.PostParams
	amended []*transaction.Transaction
	removed []uuid.UUID
}

func (f *fakeLedger) Process(_ context.Context, p ledger.PostParams) (*transaction.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.posted = append(f.posted, p)

	return &transaction.Transaction{ID: uuid.New(), AccountID: p.AccountID, Type: p.Type, Amount: p.Amount, EffectiveDate: p.EffectiveDate}, nil
}

func (f *fakeLedger) Amend(_ context.Context, tx *transaction.Transaction) (*transaction.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.amended = append(f.amended, tx)

	return tx, nil
}

func (f *fakeLedger) Remove(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}

	f.removed = append(f.removed, id)

	return nil
}

func newRouter(t *testing.T, l *fakeLedger, setup func(m *transaction.MockRepository)) http.Handler {
	ctrl := gomock.NewController(t)
	repo := transaction.NewMockRepository(ctrl)

	if setup != nil {
		setup(repo)
	}

	router := chi.NewRouter()
	router.Route("/api/transactions", transactionhttp.NewHandler(transaction.NewService(repo), l).Routes)

	return router
}

func do(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))

	return rec
}

func TestHandler_Create(t *testing.T) {
	accountID := uuid.New()

	t.Run("posts through the ledger", func(t *testing.T) {
		l := &fakeLedger{}
		body := fmt.Sprintf(`{"idUserAccount":"%s","type":"Credit","amount":"10.50","effectiveDate":"2024-02-29"}`, accountID)

		rec := do(newRouter(t, l, nil), http.MethodPost, "/api/transactions/", body)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/api/transactions/"))

		require.Len(t, l.posted, 1)
		assert.Equal(t, transaction.TypeCredit, l.posted[0].Type)
		assert.Equal(t, "10.5", l.posted[0].Amount.String())
		assert.Equal(t, "2024-02-29", l.posted[0].EffectiveDate.String())

		var got map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, "credit", got["type"])
		assert.Equal(t, "10.5", got["amount"])
		assert.Equal(t, accountID.String(), got["idUserAccount"])
		assert.Equal(t, "2024-02-29", got["effectiveDate"])
	})

	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{name: "id present", body: fmt.Sprintf(`{"id":"%s","idUserAccount":"%s","type":"debit","amount":1}`, uuid.New(), accountID), status: http.StatusBadRequest},
		{name: "unknown type", body: fmt.Sprintf(`{"idUserAccount":"%s","type":"refund","amount":1}`, accountID), status: http.StatusBadRequest},
		{name: "missing account", body: `{"type":"debit","amount":1}`, status: http.StatusBadRequest},
		{name: "missing amount", body: fmt.Sprintf(`{"idUserAccount":"%s","type":"debit"}`, accountID), status: http.StatusBadRequest},
		{name: "bad date", body: fmt.Sprintf(`{"idUserAccount":"%s","type":"debit","amount":1,"effectiveDate":"29/02/2024"}`, accountID), status: http.StatusBadRequest},
		{name: "overdraft", body: fmt.Sprintf(`{"idUserAccount":"%s","type":"debit","amount":1}`, accountID), err: balance.ErrNegative, status: http.StatusBadRequest},
		{name: "negative amount", body: fmt.Sprintf(`{"idUserAccount":"%s","type":"debit","amount":-1}`, accountID), err: transaction.ErrInvalidAmount, status: http.StatusBadRequest},
		{name: "store failure", body: fmt.Sprintf(`{"idUserAccount":"%s","type":"debit","amount":1}`, accountID), err: fmt.Errorf("creating transaction: %w", context.DeadlineExceeded), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newRouter(t, &fakeLedger{err: tt.err}, nil), http.MethodPost, "/api/transactions/", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestHandler_Update(t *testing.T) {
	id, accountID := uuid.New(), uuid.New()
	body := fmt.Sprintf(`{"id":"%s","idUserAccount":"%s","type":"debit","amount":"4"}`, id, accountID)

	t.Run("amends", func(t *testing.T) {
		l := &fakeLedger{}

		rec := do(newRouter(t, l, nil), http.MethodPut, "/api/transactions/", body)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, l.amended, 1)
		assert.Equal(t, id, l.amended[0].ID)
	})

	t.Run("unknown", func(t *testing.T) {
		l := &fakeLedger{err: fmt.Errorf("locking transaction: %w", transaction.ErrNotFound)}

		rec := do(newRouter(t, l, nil), http.MethodPut, "/api/transactions/", body)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing id", func(t *testing.T) {
		rec := do(newRouter(t, &fakeLedger{}, nil), http.MethodPut, "/api/transactions/",
			fmt.Sprintf(`{"idUserAccount":"%s","type":"debit","amount":"4"}`, accountID))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_List(t *testing.T) {
	accountID := uuid.New()

	t.Run("filters", func(t *testing.T) {
		router := newRouter(t, &fakeLedger{}, func(m *transaction.MockRepository) {
			m.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, f transaction.ListFilter) ([]*transaction.Transaction, error) {
					require.NotNil(t, f.AccountID)
					assert.Equal(t, accountID, *f.AccountID)
					require.NotNil(t, f.StartDate)
					assert.Equal(t, "2024-01-01", f.StartDate.String())
					assert.Nil(t, f.EndDate)

					return []*transaction.Transaction{{ID: uuid.New(), AccountID: accountID, Type: transaction.TypeDebit}}, nil
				})
		})

		rec := do(router, http.MethodGet, "/api/transactions/?idUserAccount="+accountID.String()+"&from=2024-01-01", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Nil(t, got[0]["effectiveDate"])
	})

	t.Run("bad filter", func(t *testing.T) {
		rec := do(newRouter(t, &fakeLedger{}, nil), http.MethodGet, "/api/transactions/?to=yesterday", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_GetAndDelete(t *testing.T) {
	id := uuid.New()

	router := newRouter(t, &fakeLedger{}, func(m *transaction.MockRepository) {
		m.EXPECT().GetTransaction(gomock.Any(), id).Return(nil, transaction.ErrNotFound)
	})

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/transactions/"+id.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/transactions/nope", "").Code)

	l := &fakeLedger{}
	rec := do(newRouter(t, l, nil), http.MethodDelete, "/api/transactions/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, l.removed)

	rec = do(newRouter(t, &fakeLedger{err: balance.ErrNegative}, nil), http.MethodDelete, "/api/transactions/"+id.String(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
