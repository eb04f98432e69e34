package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/balance/store"
)

var balanceColumns = []string{"id", "account_id", "total", "created_at", "updated_at"}

func TestStore_CreateBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	accountID := uuid.New()
	id := uuid.New()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO balances").
			WithArgs(accountID, decimal.NewFromInt(5)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(id.String(), time.Now()))

		b := &balance.Balance{AccountID: accountID, Total: decimal.NewFromInt(5)}
		require.NoError(t, store.New(db).CreateBalance(context.Background(), b))
		assert.Equal(t, id, b.ID)
	})

	t.Run("duplicate account", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO balances").
			WithArgs(accountID, decimal.Zero).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := store.New(db).CreateBalance(context.Background(), &balance.Balance{AccountID: accountID})
		assert.ErrorIs(t, err, balance.ErrDuplicate)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetBalanceByAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	accountID := uuid.New()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, account_id, total, created_at, updated_at FROM balances WHERE account_id = \\$1").
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows(balanceColumns).
				AddRow(uuid.New().String(), accountID.String(), "30.50", time.Now(), nil))

		b, err := store.New(db).GetBalanceByAccount(context.Background(), accountID)
		require.NoError(t, err)
		assert.Equal(t, accountID, b.AccountID)
		assert.True(t, decimal.RequireFromString("30.5").Equal(b.Total))
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, account_id, total, created_at, updated_at FROM balances WHERE account_id = \\$1").
			WithArgs(accountID).
			WillReturnRows(sqlmock.NewRows(balanceColumns))

		_, err := store.New(db).GetBalanceByAccount(context.Background(), accountID)
		assert.ErrorIs(t, err, balance.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateBalance_CheckViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	b := &balance.Balance{ID: uuid.New(), AccountID: uuid.New(), Total: decimal.NewFromInt(-1)}

	mock.ExpectQuery("UPDATE balances").
		WithArgs(b.AccountID, b.Total, b.ID).
		WillReturnError(&pgconn.PgError{Code: "23514"})

	err = store.New(db).UpdateBalance(context.Background(), b)
	assert.ErrorIs(t, err, balance.ErrNegative)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateError(t *testing.T) {
	plain := errors.New("connection reset")

	assert.Same(t, plain, store.TranslateError(plain))
	assert.ErrorIs(t, store.TranslateError(&pgconn.PgError{Code: "23505"}), balance.ErrDuplicate)
	assert.ErrorIs(t, store.TranslateError(&pgconn.PgError{Code: "23514"}), balance.ErrNegative)
}
