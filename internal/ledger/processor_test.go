package ledger_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/accountbook/internal/balance"
	"github.com/MrJamesThe3rd/accountbook/internal/ledger"
	"github.com/MrJamesThe3rd/accountbook/internal/transaction"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newBalance(accountID uuid.UUID, total int64) *balance.Balance {
	return &balance.Balance{ID: uuid.New(), AccountID: accountID, Total: dec(total)}
}

func TestProcessor_Process(t *testing.T) {
	type testCase struct {
		name      string
		params    ledger.PostParams
		setupMock func(repo *ledger.MockRepository, tx *ledger.MockTx)
		wantErr   error
		wantTotal *decimal.Decimal
	}

	accountID := uuid.New()
	total := func(v int64) *decimal.Decimal { d := dec(v); return &d }

	tests := []testCase{
		{
			name:   "CreditAddsToBalance",
			params: ledger.PostParams{AccountID: accountID, Type: transaction.TypeCredit, Amount: dec(10)},
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(newBalance(accountID, 0), nil)
				tx.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantTotal: total(10),
		},
		{
			name:   "DebitWithinBalance",
			params: ledger.PostParams{AccountID: accountID, Type: transaction.TypeDebit, Amount: dec(5)},
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(newBalance(accountID, 20), nil)
				tx.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantTotal: total(15),
		},
		{
			name:   "UppercaseTypeIsNormalized",
			params: ledger.PostParams{AccountID: accountID, Type: "DEBIT", Amount: dec(20)},
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(newBalance(accountID, 20), nil)
				tx.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, got *transaction.Transaction) error {
						assert.Equal(t, transaction.TypeDebit, got.Type)
						return nil
					})
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantTotal: total(0),
		},
		{
			name:   "DebitOverdrawsBalance",
			params: ledger.PostParams{AccountID: accountID, Type: transaction.TypeDebit, Amount: dec(10)},
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(newBalance(accountID, 5), nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: balance.ErrNegative,
		},
		{
			name:   "NoBalanceStoresTransaction",
			params: ledger.PostParams{AccountID: accountID, Type: transaction.TypeDebit, Amount: dec(10)},
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(nil, balance.ErrNotFound)
				tx.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
		},
		{
			name:   "BalanceFailureFallsBackToPlainInsert",
			params: ledger.PostParams{AccountID: accountID, Type: transaction.TypeCredit, Amount: dec(10)},
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(nil, errors.New("connection reset"))
				tx.EXPECT().Rollback().Return(nil).MinTimes(1)
				repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(nil)
			},
		},
		{
			name:   "FallbackInsertFails",
			params: ledger.PostParams{AccountID: accountID, Type: transaction.TypeCredit, Amount: dec(10)},
			setupMock: func(repo *ledger.MockRepository, tx *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
				tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(newBalance(accountID, 0), nil)
				tx.EXPECT().SaveBalance(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
				tx.EXPECT().Rollback().Return(nil).MinTimes(1)
				repo.EXPECT().CreateTransaction(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
			},
			wantErr: errors.New("db down"),
		},
		{
			name:    "NegativeAmount",
			params:  ledger.PostParams{AccountID: accountID, Type: transaction.TypeCredit, Amount: dec(-1)},
			wantErr: transaction.ErrInvalidAmount,
		},
		{
			name:    "UnknownTypeIsRejected",
			params:  ledger.PostParams{AccountID: accountID, Type: "refund", Amount: dec(1)},
			wantErr: transaction.ErrInvalidType,
		},
		{
			name:   "BeginFails",
			params: ledger.PostParams{AccountID: accountID, Type: transaction.TypeCredit, Amount: dec(1)},
			setupMock: func(repo *ledger.MockRepository, _ *ledger.MockTx) {
				repo.EXPECT().Begin(gomock.Any()).Return(nil, errors.New("pool exhausted"))
			},
			wantErr: errors.New("pool exhausted"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := ledger.NewMockRepository(ctrl)
			tx := ledger.NewMockTx(ctrl)

			var saved *balance.Balance
			if tt.setupMock != nil {
				tt.setupMock(repo, tx)
			}

			tx.EXPECT().SaveBalance(gomock.Any(), gomock.Any()).
				Do(func(_ context.Context, b *balance.Balance) { saved = b }).
				Return(nil).AnyTimes()

			got, err := ledger.NewProcessor(repo).Process(context.Background(), tt.params)

			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, balance.ErrNegative) || errors.Is(tt.wantErr, transaction.ErrInvalidAmount) ||
					errors.Is(tt.wantErr, transaction.ErrInvalidType) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.ErrorContains(t, err, tt.wantErr.Error())
				}

				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, got.ID)
			assert.Equal(t, accountID, got.AccountID)

			if tt.wantTotal != nil {
				require.NotNil(t, saved)
				assert.True(t, tt.wantTotal.Equal(saved.Total), "got total %s", saved.Total)
			}
		})
	}
}

func TestProcessor_Amend(t *testing.T) {
	t.Run("SameAccountNetsTheDifference", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := ledger.NewMockRepository(ctrl)
		tx := ledger.NewMockTx(ctrl)

		accountID := uuid.New()
		current := &transaction.Transaction{
			ID: uuid.New(), AccountID: accountID, Type: transaction.TypeCredit, Amount: dec(20),
		}

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockTransaction(gomock.Any(), current.ID).Return(current, nil)
		// 5 left after a 15 debit elsewhere; reverting the whole credit first would overdraw.
		tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(newBalance(accountID, 5), nil)
		tx.EXPECT().SaveBalance(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, b *balance.Balance) error {
				assert.True(t, dec(10).Equal(b.Total), "got total %s", b.Total)
				return nil
			})
		tx.EXPECT().UpdateTransaction(gomock.Any(), gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		got, err := ledger.NewProcessor(repo).Amend(context.Background(), &transaction.Transaction{
			ID: current.ID, AccountID: accountID, Type: "Credit", Amount: dec(25),
		})

		require.NoError(t, err)
		assert.Equal(t, transaction.TypeCredit, got.Type)
	})

	t.Run("MovesBetweenAccounts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := ledger.NewMockRepository(ctrl)
		tx := ledger.NewMockTx(ctrl)

		from, to := uuid.New(), uuid.New()
		current := &transaction.Transaction{
			ID: uuid.New(), AccountID: from, Type: transaction.TypeDebit, Amount: dec(10),
		}

		totals := map[uuid.UUID]int64{}

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockTransaction(gomock.Any(), current.ID).Return(current, nil)
		tx.EXPECT().LockBalance(gomock.Any(), from).Return(newBalance(from, 0), nil)
		tx.EXPECT().LockBalance(gomock.Any(), to).Return(newBalance(to, 30), nil)
		tx.EXPECT().SaveBalance(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, b *balance.Balance) error {
				totals[b.AccountID] = b.Total.IntPart()
				return nil
			}).Times(2)
		tx.EXPECT().UpdateTransaction(gomock.Any(), gomock.Any()).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		_, err := ledger.NewProcessor(repo).Amend(context.Background(), &transaction.Transaction{
			ID: current.ID, AccountID: to, Type: transaction.TypeDebit, Amount: dec(10),
		})

		require.NoError(t, err)
		assert.Equal(t, map[uuid.UUID]int64{from: 10, to: 20}, totals)
	})

	t.Run("OverdrawIsRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := ledger.NewMockRepository(ctrl)
		tx := ledger.NewMockTx(ctrl)

		accountID := uuid.New()
		current := &transaction.Transaction{
			ID: uuid.New(), AccountID: accountID, Type: transaction.TypeDebit, Amount: dec(30),
		}

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockTransaction(gomock.Any(), current.ID).Return(current, nil)
		tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(newBalance(accountID, 0), nil)
		tx.EXPECT().Rollback().Return(nil)

		_, err := ledger.NewProcessor(repo).Amend(context.Background(), &transaction.Transaction{
			ID: current.ID, AccountID: accountID, Type: transaction.TypeDebit, Amount: dec(40),
		})

		assert.ErrorIs(t, err, balance.ErrNegative)
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := ledger.NewMockRepository(ctrl)
		tx := ledger.NewMockTx(ctrl)

		id := uuid.New()

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockTransaction(gomock.Any(), id).Return(nil, transaction.ErrNotFound)
		tx.EXPECT().Rollback().Return(nil)

		_, err := ledger.NewProcessor(repo).Amend(context.Background(), &transaction.Transaction{
			ID: id, Type: transaction.TypeCredit, Amount: dec(1),
		})

		assert.ErrorIs(t, err, transaction.ErrNotFound)
	})

	t.Run("InvalidType", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := ledger.NewMockRepository(ctrl)

		_, err := ledger.NewProcessor(repo).Amend(context.Background(), &transaction.Transaction{
			ID: uuid.New(), Type: "refund", Amount: dec(1),
		})

		assert.ErrorIs(t, err, transaction.ErrInvalidType)
	})
}

func TestProcessor_Remove(t *testing.T) {
	t.Run("RevertsEffect", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := ledger.NewMockRepository(ctrl)
		tx := ledger.NewMockTx(ctrl)

		accountID := uuid.New()
		current := &transaction.Transaction{
			ID: uuid.New(), AccountID: accountID, Type: transaction.TypeDebit, Amount: dec(5),
		}

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockTransaction(gomock.Any(), current.ID).Return(current, nil)
		tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(newBalance(accountID, 15), nil)
		tx.EXPECT().SaveBalance(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, b *balance.Balance) error {
				assert.True(t, dec(20).Equal(b.Total))
				return nil
			})
		tx.EXPECT().DeleteTransaction(gomock.Any(), current.ID).Return(nil)
		tx.EXPECT().Commit().Return(nil)
		tx.EXPECT().Rollback().Return(nil)

		require.NoError(t, ledger.NewProcessor(repo).Remove(context.Background(), current.ID))
	})

	t.Run("SpentCreditCannotBeRemoved", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := ledger.NewMockRepository(ctrl)
		tx := ledger.NewMockTx(ctrl)

		accountID := uuid.New()
		current := &transaction.Transaction{
			ID: uuid.New(), AccountID: accountID, Type: transaction.TypeCredit, Amount: dec(10),
		}

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockTransaction(gomock.Any(), current.ID).Return(current, nil)
		tx.EXPECT().LockBalance(gomock.Any(), accountID).Return(newBalance(accountID, 3), nil)
		tx.EXPECT().Rollback().Return(nil)

		err := ledger.NewProcessor(repo).Remove(context.Background(), current.ID)
		assert.ErrorIs(t, err, balance.ErrNegative)
	})

	t.Run("MissingIsNoop", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := ledger.NewMockRepository(ctrl)
		tx := ledger.NewMockTx(ctrl)

		id := uuid.New()

		repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
		tx.EXPECT().LockTransaction(gomock.Any(), id).Return(nil, transaction.ErrNotFound)
		tx.EXPECT().Rollback().Return(nil)

		assert.NoError(t, ledger.NewProcessor(repo).Remove(context.Background(), id))
	})
}

func TestProcessor_Reconcile(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := ledger.NewMockRepository(ctrl)
	tx := ledger.NewMockTx(ctrl)

	clean := ledger.Totals{BalanceID: uuid.New(), AccountID: uuid.New(), Stored: dec(10), Computed: dec(10)}
	drifted := ledger.Totals{BalanceID: uuid.New(), AccountID: uuid.New(), Stored: dec(7), Computed: dec(12)}

	repo.EXPECT().Totals(gomock.Any()).Return([]ledger.Totals{clean, drifted}, nil).Times(2)

	drifts, err := ledger.NewProcessor(repo).Reconcile(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, drifted.BalanceID, drifts[0].BalanceID)
	assert.False(t, drifts[0].Fixed)

	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().LockBalance(gomock.Any(), drifted.AccountID).
		Return(&balance.Balance{ID: drifted.BalanceID, AccountID: drifted.AccountID, Total: dec(7)}, nil)
	tx.EXPECT().SumTransactions(gomock.Any(), drifted.AccountID).Return(dec(12), nil)
	tx.EXPECT().SaveBalance(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b *balance.Balance) error {
			assert.True(t, dec(12).Equal(b.Total))
			return nil
		})
	tx.EXPECT().Commit().Return(nil)
	tx.EXPECT().Rollback().Return(nil)

	drifts, err = ledger.NewProcessor(repo).Reconcile(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.True(t, drifts[0].Fixed)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ledger.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e ledger.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, e)

	return nil
}

func TestProcessor_PublishesCommittedChanges(t *testing.T) {
	accountID := uuid.New()
	repo := newMemRepo(accountID, dec(0))
	pub := &recordingPublisher{}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	p := ledger.NewProcessor(repo, ledger.WithPublisher(pub), ledger.WithClock(func() time.Time { return now }))

	tx, err := p.Process(context.Background(), ledger.PostParams{AccountID: accountID, Type: transaction.TypeCredit, Amount: dec(10)})
	require.NoError(t, err)

	_, err = p.Process(context.Background(), ledger.PostParams{AccountID: accountID, Type: transaction.TypeDebit, Amount: dec(50)})
	require.ErrorIs(t, err, balance.ErrNegative)

	require.Len(t, pub.events, 1)
	assert.Equal(t, ledger.EventPosted, pub.events[0].Kind)
	assert.Equal(t, accountID, pub.events[0].AccountID)
	assert.Equal(t, &tx.ID, pub.events[0].TransactionID)
	assert.True(t, dec(10).Equal(pub.events[0].Total))
	assert.Equal(t, now, pub.events[0].OccurredAt)
}

func TestProcessor_Process_ConcurrentCreditsSerialize(t *testing.T) {
	accountID := uuid.New()
	repo := newMemRepo(accountID, dec(0))
	p := ledger.NewProcessor(repo)

	var wg sync.WaitGroup

	for range 2 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := p.Process(context.Background(), ledger.PostParams{
				AccountID: accountID, Type: transaction.TypeCredit, Amount: dec(10),
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.True(t, dec(20).Equal(repo.total(accountID)), "got total %s", repo.total(accountID))
	assert.Len(t, repo.txs, 2)
}

func TestProcessor_Process_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	accountID := uuid.New()
	repo := newMemRepo(accountID, dec(50))
	p := ledger.NewProcessor(repo)

	var (
		wg       sync.WaitGroup
		applied  atomic.Int32
		rejected atomic.Int32
	)

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := p.Process(context.Background(), ledger.PostParams{
				AccountID: accountID, Type: transaction.TypeDebit, Amount: dec(5),
			})

			switch {
			case err == nil:
				applied.Add(1)
			case errors.Is(err, balance.ErrNegative):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(10), applied.Load())
	assert.Equal(t, int32(10), rejected.Load())
	assert.True(t, repo.total(accountID).IsZero())
}

// memRepo holds one lock per balance until the unit of work ends, the same
// way SELECT ... FOR UPDATE does.
type memRepo struct {
	mu       sync.Mutex
	locks    map[uuid.UUID]*sync.Mutex
	balances map[uuid.UUID]balance.Balance
	txs      map[uuid.UUID]transaction.Transaction
}

func newMemRepo(accountID uuid.UUID, total decimal.Decimal) *memRepo {
	return &memRepo{
		locks:    map[uuid.UUID]*sync.Mutex{accountID: {}},
		balances: map[uuid.UUID]balance.Balance{accountID: {ID: uuid.New(), AccountID: accountID, Total: total}},
		txs:      map[uuid.UUID]transaction.Transaction{},
	}
}

func (r *memRepo) total(accountID uuid.UUID) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.balances[accountID].Total
}

func (r *memRepo) Begin(context.Context) (ledger.Tx, error) {
	return &memTx{repo: r}, nil
}

func (r *memRepo) CreateTransaction(_ context.Context, tx *transaction.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.txs[tx.ID] = *tx

	return nil
}

func (r *memRepo) Totals(context.Context) ([]ledger.Totals, error) {
	return nil, nil
}

type memTx struct {
	repo     *memRepo
	held     []*sync.Mutex
	balances []balance.Balance
	txs      []transaction.Transaction
	done     bool
}

func (t *memTx) LockBalance(_ context.Context, accountID uuid.UUID) (*balance.Balance, error) {
	t.repo.mu.Lock()
	l, ok := t.repo.locks[accountID]
	t.repo.mu.Unlock()

	if !ok {
		return nil, balance.ErrNotFound
	}

	l.Lock()
	t.held = append(t.held, l)

	t.repo.mu.Lock()
	b := t.repo.balances[accountID]
	t.repo.mu.Unlock()

	return &b, nil
}

func (t *memTx) SaveBalance(_ context.Context, b *balance.Balance) error {
	t.balances = append(t.balances, *b)
	return nil
}

func (t *memTx) SumTransactions(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("not supported")
}

func (t *memTx) LockTransaction(context.Context, uuid.UUID) (*transaction.Transaction, error) {
	return nil, transaction.ErrNotFound
}

func (t *memTx) CreateTransaction(_ context.Context, tx *transaction.Transaction) error {
	t.txs = append(t.txs, *tx)
	return nil
}

func (t *memTx) UpdateTransaction(context.Context, *transaction.Transaction) error {
	return errors.New("not supported")
}

func (t *memTx) DeleteTransaction(context.Context, uuid.UUID) error {
	return errors.New("not supported")
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}

	t.repo.mu.Lock()
	for _, b := range t.balances {
		t.repo.balances[b.AccountID] = b
	}

	for _, tx := range t.txs {
		t.repo.txs[tx.ID] = tx
	}
	t.repo.mu.Unlock()

	t.release()

	return nil
}

func (t *memTx) Rollback() error {
	if !t.done {
		t.release()
	}

	return nil
}

func (t *memTx) release() {
	t.done = true

	for _, l := range t.held {
		l.Unlock()
	}
}
