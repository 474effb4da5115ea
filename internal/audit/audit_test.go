package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fdvault/internal/domain"
	"fdvault/internal/repository"
	"fdvault/internal/util"
)

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	args := m.Called(ctx, q, transaction)
	if args.Error(0) == nil {
		transaction.ID = 7
	}
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateTransactionStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.TransactionStatus, txRef *string, amount *decimal.Decimal) error {
	args := m.Called(ctx, q, id, status, txRef, amount)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetTransactionsByAddress(ctx context.Context, q repository.DBExecutor, address string, limit, offset int) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, q, address, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Transaction), args.Get(1).(int64), args.Error(2)
}

type MockFixedDepositRepository struct {
	mock.Mock
}

func (m *MockFixedDepositRepository) UpsertFixedDeposit(ctx context.Context, q repository.DBExecutor, record *domain.FixedDepositRecord) error {
	args := m.Called(ctx, q, record)
	return args.Error(0)
}

func (m *MockFixedDepositRepository) GetFixedDepositsByAddress(ctx context.Context, q repository.DBExecutor, address string) ([]domain.FixedDepositRecord, error) {
	args := m.Called(ctx, q, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FixedDepositRecord), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type countingFailures struct {
	stages []string
}

func (c *countingFailures) AuditFailure(stage string) {
	c.stages = append(c.stages, stage)
}

func directTx(ctx context.Context, fn func(q repository.DBExecutor) error) error {
	return fn(nil)
}

const owner = "0x26C7c4473feFE6E9662f2CcfD9501D47c0fBcE8B"

func TestLogSuccess(t *testing.T) {
	ctx := context.Background()
	txRepo := new(MockTransactionRepository)
	fdRepo := new(MockFixedDepositRepository)
	pub := new(MockPublisher)
	log := NewLog(nil, directTx, txRepo, fdRepo, pub, nil, zaptest.NewLogger(t))

	amount := decimal.RequireFromString("1000")
	fd := domain.FixedDeposit{Owner: owner, Principal: amount, StartTime: time.Now().UTC(), Months: 3}
	fdRecord := domain.NewFixedDepositRecord(0, fd, "ref-1")

	txRepo.On("CreateTransaction", ctx, nil, mock.MatchedBy(func(tx *domain.Transaction) bool {
		return tx.UserAddress == owner && tx.Type == domain.TransactionTypeCreateFD && tx.Status == domain.TransactionStatusPending
	})).Return(nil).Once()
	txRepo.On("UpdateTransactionStatus", ctx, nil, int64(7), domain.TransactionStatusSuccess, mock.MatchedBy(func(ref *string) bool {
		return ref != nil && *ref == "ref-1"
	}), (*decimal.Decimal)(nil)).Return(nil).Once()
	fdRepo.On("UpsertFixedDeposit", ctx, nil, fdRecord).Return(nil).Once()
	pub.On("Publish", ctx, mock.MatchedBy(func(e Event) bool {
		return e.Ref == "ref-1" && e.AmountWei == "1000000000000000000000" && e.Status == domain.TransactionStatusSuccess && e.Error == ""
	})).Return(nil).Once()

	record := log.Begin(ctx, owner, domain.TransactionTypeCreateFD, amount)
	require.NotNil(t, record)
	log.Complete(ctx, record, Outcome{Ref: "ref-1", Deposit: fdRecord})

	assert.Equal(t, domain.TransactionStatusSuccess, record.Status)
	require.NotNil(t, record.TxRef)
	assert.Equal(t, "ref-1", *record.TxRef)
	mock.AssertExpectationsForObjects(t, txRepo, fdRepo, pub)
}

func TestLogFailedCommand(t *testing.T) {
	ctx := context.Background()
	txRepo := new(MockTransactionRepository)
	fdRepo := new(MockFixedDepositRepository)
	pub := new(MockPublisher)
	log := NewLog(nil, directTx, txRepo, fdRepo, pub, nil, zaptest.NewLogger(t))

	txRepo.On("CreateTransaction", ctx, nil, mock.Anything).Return(nil).Once()
	txRepo.On("UpdateTransactionStatus", ctx, nil, int64(7), domain.TransactionStatusFailed, mock.Anything, (*decimal.Decimal)(nil)).Return(nil).Once()
	pub.On("Publish", ctx, mock.MatchedBy(func(e Event) bool {
		return e.Status == domain.TransactionStatusFailed && e.Error == "not_matured"
	})).Return(nil).Once()

	record := log.Begin(ctx, owner, domain.TransactionTypeWithdrawFD, decimal.Zero)
	log.Complete(ctx, record, Outcome{
		Ref:     "ref-2",
		Err:     fmt.Errorf("withdraw: %w", util.ErrNotMatured),
		Deposit: &domain.FixedDepositRecord{},
	})

	fdRepo.AssertNotCalled(t, "UpsertFixedDeposit", mock.Anything, mock.Anything, mock.Anything)
	mock.AssertExpectationsForObjects(t, txRepo, pub)
}

func TestLogSettledAmount(t *testing.T) {
	ctx := context.Background()
	txRepo := new(MockTransactionRepository)
	pub := new(MockPublisher)
	log := NewLog(nil, directTx, txRepo, new(MockFixedDepositRepository), pub, nil, zaptest.NewLogger(t))

	settled := decimal.RequireFromString("250")
	txRepo.On("CreateTransaction", ctx, nil, mock.Anything).Return(nil).Twice()
	txRepo.On("UpdateTransactionStatus", ctx, nil, int64(7), domain.TransactionStatusSuccess, mock.Anything, &settled).Return(nil).Once()
	txRepo.On("UpdateTransactionStatus", ctx, nil, int64(7), domain.TransactionStatusFailed, mock.Anything, (*decimal.Decimal)(nil)).Return(nil).Once()
	pub.On("Publish", ctx, mock.MatchedBy(func(e Event) bool {
		return e.Status == domain.TransactionStatusSuccess && e.AmountWei == "250000000000000000000"
	})).Return(nil).Once()
	pub.On("Publish", ctx, mock.MatchedBy(func(e Event) bool {
		return e.Status == domain.TransactionStatusFailed && e.AmountWei == "0"
	})).Return(nil).Once()

	record := log.Begin(ctx, owner, domain.TransactionTypeWithdrawFD, decimal.Zero)
	log.Complete(ctx, record, Outcome{Ref: "ref-3", Amount: &settled})
	assert.True(t, settled.Equal(record.Amount))

	record = log.Begin(ctx, owner, domain.TransactionTypeWithdrawFD, decimal.Zero)
	log.Complete(ctx, record, Outcome{Ref: "ref-4", Amount: &settled, Err: util.ErrNotFound})
	assert.True(t, record.Amount.IsZero())

	mock.AssertExpectationsForObjects(t, txRepo, pub)
}

func TestLogFailuresNeverPropagate(t *testing.T) {
	ctx := context.Background()

	t.Run("BeginFails", func(t *testing.T) {
		txRepo := new(MockTransactionRepository)
		failures := &countingFailures{}
		log := NewLog(nil, directTx, txRepo, new(MockFixedDepositRepository), nil, failures, zaptest.NewLogger(t))

		txRepo.On("CreateTransaction", ctx, nil, mock.Anything).Return(errors.New("db down")).Once()
		record := log.Begin(ctx, owner, domain.TransactionTypeTransfer, decimal.NewFromInt(1))
		assert.Nil(t, record)

		log.Complete(ctx, record, Outcome{Ref: "ref"})
		assert.Equal(t, []string{"begin"}, failures.stages)
		txRepo.AssertExpectations(t)
	})

	t.Run("CompleteAndPublishFail", func(t *testing.T) {
		txRepo := new(MockTransactionRepository)
		pub := new(MockPublisher)
		failures := &countingFailures{}
		log := NewLog(nil, directTx, txRepo, new(MockFixedDepositRepository), pub, failures, zaptest.NewLogger(t))

		txRepo.On("CreateTransaction", ctx, nil, mock.Anything).Return(nil).Once()
		txRepo.On("UpdateTransactionStatus", ctx, nil, int64(7), domain.TransactionStatusSuccess, mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
		pub.On("Publish", ctx, mock.Anything).Return(errors.New("broker down")).Once()

		record := log.Begin(ctx, owner, domain.TransactionTypeTransfer, decimal.NewFromInt(1))
		log.Complete(ctx, record, Outcome{Ref: "ref", Counterparty: owner})
		assert.Equal(t, []string{"complete", "publish"}, failures.stages)
		mock.AssertExpectationsForObjects(t, txRepo, pub)
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	txRepo := new(MockTransactionRepository)
	fdRepo := new(MockFixedDepositRepository)
	log := NewLog(nil, directTx, txRepo, fdRepo, nil, nil, zaptest.NewLogger(t))

	txs := []domain.Transaction{{ID: 1, UserAddress: owner}}
	txRepo.On("GetTransactionsByAddress", ctx, nil, owner, 10, 0).Return(txs, int64(1), nil).Once()
	got, total, err := log.Transactions(ctx, owner, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, txs, got)
	assert.Equal(t, int64(1), total)

	fdRepo.On("GetFixedDepositsByAddress", ctx, nil, owner).Return(nil, errors.New("db down")).Once()
	_, err = log.FixedDeposits(ctx, owner)
	assert.ErrorContains(t, err, "fixed deposit history")

	mock.AssertExpectationsForObjects(t, txRepo, fdRepo)
}
