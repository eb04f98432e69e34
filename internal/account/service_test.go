package account_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/accountbook/internal/account"
)

func TestService_Create(t *testing.T) {
	type testCase struct {
		name      string
		params    account.CreateParams
		setupMock func(m *account.MockRepository)
		wantErr   bool
	}

	tests := []testCase{
		{
			name:   "Success",
			params: account.CreateParams{Name: "Alice"},
			setupMock: func(m *account.MockRepository) {
				m.EXPECT().
					CreateAccount(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, a *account.Account) error {
						assert.Equal(t, "Alice", a.Name)
						a.ID = uuid.New()
						a.CreatedAt = time.Now()
						return nil
					})
			},
		},
		{
			name:   "RepoError",
			params: account.CreateParams{Name: "Alice"},
			setupMock: func(m *account.MockRepository) {
				m.EXPECT().
					CreateAccount(gomock.Any(), gomock.Any()).
					Return(errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := account.NewMockRepository(ctrl)
			tt.setupMock(repo)

			got, err := account.NewService(repo).Create(context.Background(), tt.params)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)

				return
			}

			assert.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, got.ID)
		})
	}
}

func TestService_Get_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	id := uuid.New()
	repo := account.NewMockRepository(ctrl)
	repo.EXPECT().GetAccount(gomock.Any(), id).Return(nil, account.ErrNotFound)

	_, err := account.NewService(repo).Get(context.Background(), id)
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestService_Update(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a := &account.Account{ID: uuid.New(), Name: "Alice", Disabled: true}
	repo := account.NewMockRepository(ctrl)
	repo.EXPECT().UpdateAccount(gomock.Any(), a).Return(nil)

	assert.NoError(t, account.NewService(repo).Update(context.Background(), a))
}
