package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fdvault/internal/audit"
	"fdvault/internal/domain"
	"fdvault/internal/ledger"
	"fdvault/internal/metrics"
	"fdvault/internal/repository/memory"
	"fdvault/internal/util"
)

var (
	alice = domain.NormalizeOwner("0x52f1984cd3e46e1214db222d3ff63712e7aceedd")
	bob   = domain.NormalizeOwner("0x26c7c4473fefe6e9662f2ccfd9501d47c0fbce8b")
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	svc   VaultService
	store *memory.Store
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, err := ledger.New(ledger.DefaultParams())
	require.NoError(t, err)

	store := memory.NewStore()
	logger := zaptest.NewLogger(t)
	m := metrics.New()
	auditLog := audit.NewLog(nil, store.RunInTx, store, store, nil, m, logger)
	clock := &fakeClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}

	svc := NewVaultService(l, auditLog, store, nil, store.RunInTx, m, logger, Options{
		OpeningEth:    decimal.RequireFromString("2.5"),
		OpeningTokens: decimal.NewFromInt(50000),
		Now:           clock.Now,
	})
	return &fixture{svc: svc, store: store, clock: clock}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestOpenAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct, created, err := f.svc.OpenAccount(ctx, alice)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, dec("50000").Equal(acct.TokenBalance))
	assert.True(t, dec("2.5").Equal(acct.EthBalance))

	_, _, err = f.svc.Transfer(ctx, alice, bob, dec("100"))
	require.NoError(t, err)

	acct, created, err = f.svc.OpenAccount(ctx, alice)
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, dec("49900").Equal(acct.TokenBalance))

	_, _, err = f.svc.OpenAccount(ctx, "not-an-address")
	assert.ErrorIs(t, err, util.ErrInvalidInput)
}

func TestDepositLifecycleIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.OpenAccount(ctx, alice)
	require.NoError(t, err)

	created, createRef, err := f.svc.CreateDeposit(ctx, alice, dec("1000"), 6)
	require.NoError(t, err)
	assert.NotEmpty(t, createRef)
	assert.Equal(t, 0, created.Index)
	assert.Equal(t, f.clock.now, created.Deposit.StartTime)

	_, failedRef, err := f.svc.Withdraw(ctx, alice, 0)
	assert.ErrorIs(t, err, util.ErrNotMatured)

	f.clock.Advance(6 * domain.Month)
	payout, withdrawRef, err := f.svc.Withdraw(ctx, alice, 0)
	require.NoError(t, err)
	assert.True(t, dec("61.520150601").Equal(payout.Interest), "interest %s", payout.Interest)
	assert.True(t, dec("50061.520150601").Equal(payout.TokenBalance))

	txs, total, err := f.svc.GetTransactionHistory(ctx, alice, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, txs, 3)

	// newest first
	assert.Equal(t, domain.TransactionTypeWithdrawFD, txs[0].Type)
	assert.Equal(t, domain.TransactionStatusSuccess, txs[0].Status)
	assert.Equal(t, withdrawRef, *txs[0].TxRef)
	assert.True(t, dec("1000").Equal(txs[0].Amount))

	assert.Equal(t, domain.TransactionTypeWithdrawFD, txs[1].Type)
	assert.Equal(t, domain.TransactionStatusFailed, txs[1].Status)
	assert.Equal(t, failedRef, *txs[1].TxRef)

	assert.Equal(t, domain.TransactionTypeCreateFD, txs[2].Type)
	assert.Equal(t, createRef, *txs[2].TxRef)

	history, err := f.svc.GetFixedDepositHistory(ctx, alice)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.FixedDepositStatusWithdrawn, history[0].Status)
	assert.Equal(t, 6, history[0].Months)
	assert.Equal(t, withdrawRef, *history[0].TxRef)
}

func TestRenewAndEarlyWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.OpenAccount(ctx, alice)
	require.NoError(t, err)
	_, _, err = f.svc.CreateDeposit(ctx, alice, dec("1000"), 1)
	require.NoError(t, err)

	f.clock.Advance(15 * 24 * time.Hour)
	renewed, _, err := f.svc.Renew(ctx, alice, 0, 3)
	require.NoError(t, err)
	assert.True(t, renewed.Deposit.Renewed)
	assert.Equal(t, f.clock.now, renewed.Deposit.StartTime)

	history, err := f.svc.GetFixedDepositHistory(ctx, alice)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.FixedDepositStatusRenewed, history[0].Status)
	assert.Equal(t, 3, history[0].Months)

	f.clock.Advance(domain.Month)
	payout, _, err := f.svc.EarlyWithdraw(ctx, alice, 0)
	require.NoError(t, err)
	want, err := ledger.CalculateInterest(dec("1000"), dec("0.75"), dec("1"))
	require.NoError(t, err)
	assert.True(t, want.Equal(payout.Interest), "interest %s want %s", payout.Interest, want)

	_, _, err = f.svc.EarlyWithdraw(ctx, alice, 0)
	assert.ErrorIs(t, err, util.ErrAlreadyWithdrawn)
}

func TestConvertAndTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.FundEth(ctx, alice, dec("0.1"))
	require.NoError(t, err)
	conv, _, err := f.svc.Convert(ctx, alice, ledger.EthToToken, dec("0.1"))
	require.NoError(t, err)
	assert.True(t, dec("20000").Equal(conv.TokenBalance))

	_, _, err = f.svc.Convert(ctx, alice, ledger.Direction("sideways"), dec("1"))
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	res, _, err := f.svc.Transfer(ctx, alice, bob, dec("20000"))
	require.NoError(t, err)
	assert.True(t, res.FromBalance.IsZero())

	_, _, err = f.svc.Transfer(ctx, alice, "0xabc", dec("1"))
	assert.ErrorIs(t, err, util.ErrInvalidRecipient)

	txs, _, err := f.svc.GetTransactionHistory(ctx, alice, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, domain.TransactionStatusFailed, txs[0].Status)
	assert.Equal(t, domain.TransactionTypeTransfer, txs[1].Type)
	assert.Equal(t, domain.TransactionTypeEthToMT, txs[2].Type)
}

func TestDistributeMonthlyInterest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.OpenAccount(ctx, alice)
	require.NoError(t, err)

	res, ref := f.svc.DistributeMonthlyInterest(ctx)
	assert.True(t, dec("250").Equal(res.Total))

	txs, _, err := f.svc.GetTransactionHistory(ctx, alice, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionTypeClaimInterest, txs[0].Type)
	assert.Equal(t, ref, *txs[0].TxRef)
	assert.True(t, dec("250").Equal(txs[0].Amount))

	stats := f.svc.Stats(ctx)
	assert.True(t, dec("50250").Equal(stats.TotalTokens))
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.OpenAccount(ctx, alice)
	require.NoError(t, err)
	_, _, err = f.svc.CreateDeposit(ctx, alice, dec("1234.5"), 12)
	require.NoError(t, err)
	require.NoError(t, f.svc.SaveSnapshot(ctx))

	l, err := ledger.New(ledger.DefaultParams())
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	m := metrics.New()
	restored := NewVaultService(l, audit.NewLog(nil, f.store.RunInTx, f.store, f.store, nil, m, logger), f.store, nil, f.store.RunInTx, m, logger, Options{})

	n, err := restored.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	original, err := f.svc.GetAccount(ctx, alice)
	require.NoError(t, err)
	got, err := restored.GetAccount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

type MockAuditLog struct {
	mock.Mock
}

func (m *MockAuditLog) Begin(ctx context.Context, owner string, txType domain.TransactionType, amount decimal.Decimal) *domain.Transaction {
	args := m.Called(ctx, owner, txType, amount)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.Transaction)
}

func (m *MockAuditLog) Complete(ctx context.Context, record *domain.Transaction, outcome audit.Outcome) {
	m.Called(ctx, record, outcome)
}

func (m *MockAuditLog) Transactions(ctx context.Context, owner string, limit, offset int) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, owner, limit, offset)
	return args.Get(0).([]domain.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockAuditLog) FixedDeposits(ctx context.Context, owner string) ([]domain.FixedDepositRecord, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]domain.FixedDepositRecord), args.Error(1)
}

func TestAuditOutageDoesNotBlockCommands(t *testing.T) {
	ctx := context.Background()
	l, err := ledger.New(ledger.DefaultParams())
	require.NoError(t, err)
	store := memory.NewStore()
	auditLog := new(MockAuditLog)
	svc := NewVaultService(l, auditLog, store, nil, store.RunInTx, metrics.New(), zaptest.NewLogger(t), Options{OpeningTokens: dec("10")})

	auditLog.On("Begin", ctx, alice, domain.TransactionTypeTransfer, mock.Anything).Return(nil).Once()
	auditLog.On("Complete", ctx, (*domain.Transaction)(nil), mock.MatchedBy(func(o audit.Outcome) bool {
		return o.Err == nil && o.Ref != "" && o.Counterparty == bob
	})).Once()

	_, _, err = svc.OpenAccount(ctx, alice)
	require.NoError(t, err)
	res, _, err := svc.Transfer(ctx, alice, bob, dec("4"))
	require.NoError(t, err)
	assert.True(t, dec("6").Equal(res.FromBalance))
	auditLog.AssertExpectations(t)
}

func TestTransferAuditsCanonicalRecipient(t *testing.T) {
	ctx := context.Background()
	l, err := ledger.New(ledger.DefaultParams())
	require.NoError(t, err)
	store := memory.NewStore()
	auditLog := new(MockAuditLog)
	svc := NewVaultService(l, auditLog, store, nil, store.RunInTx, metrics.New(), zaptest.NewLogger(t), Options{OpeningTokens: dec("10")})
	lower := strings.ToLower(bob)
	require.NotEqual(t, lower, bob)

	auditLog.On("Begin", ctx, alice, domain.TransactionTypeTransfer, mock.Anything).Return(nil).Twice()
	auditLog.On("Complete", ctx, (*domain.Transaction)(nil), mock.MatchedBy(func(o audit.Outcome) bool {
		return o.Err == nil && o.Counterparty == bob
	})).Once()
	auditLog.On("Complete", ctx, (*domain.Transaction)(nil), mock.MatchedBy(func(o audit.Outcome) bool {
		return util.IsError(o.Err, util.ErrInsufficientBalance) && o.Counterparty == bob
	})).Once()

	_, _, err = svc.OpenAccount(ctx, alice)
	require.NoError(t, err)
	res, _, err := svc.Transfer(ctx, alice, lower, dec("4"))
	require.NoError(t, err)
	assert.Equal(t, bob, res.To)
	_, _, err = svc.Transfer(ctx, alice, lower, dec("400"))
	assert.ErrorIs(t, err, util.ErrInsufficientBalance)
	auditLog.AssertExpectations(t)
}

func TestDepositCommandsSettleAuditAmount(t *testing.T) {
	ctx := context.Background()
	l, err := ledger.New(ledger.DefaultParams())
	require.NoError(t, err)
	store := memory.NewStore()
	auditLog := new(MockAuditLog)
	clock := &fakeClock{now: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewVaultService(l, auditLog, store, nil, store.RunInTx, metrics.New(), zaptest.NewLogger(t), Options{
		OpeningTokens: dec("1000"),
		Now:           clock.Now,
	})
	_, _, err = svc.OpenAccount(ctx, alice)
	require.NoError(t, err)

	settles := func(principal string) interface{} {
		return mock.MatchedBy(func(o audit.Outcome) bool {
			return o.Err == nil && o.Amount != nil && o.Amount.Equal(dec(principal))
		})
	}
	auditLog.On("Begin", ctx, alice, mock.Anything, mock.Anything).Return(nil)
	auditLog.On("Complete", ctx, (*domain.Transaction)(nil), mock.MatchedBy(func(o audit.Outcome) bool {
		return o.Err == nil && o.Amount == nil && o.Deposit != nil
	})).Twice()
	auditLog.On("Complete", ctx, (*domain.Transaction)(nil), settles("300")).Twice()
	auditLog.On("Complete", ctx, (*domain.Transaction)(nil), settles("700")).Once()
	auditLog.On("Complete", ctx, (*domain.Transaction)(nil), mock.MatchedBy(func(o audit.Outcome) bool {
		return util.IsError(o.Err, util.ErrNotFound) && o.Amount == nil
	})).Once()

	_, _, err = svc.CreateDeposit(ctx, alice, dec("300"), 1)
	require.NoError(t, err)
	_, _, err = svc.CreateDeposit(ctx, alice, dec("700"), 1)
	require.NoError(t, err)

	_, _, err = svc.Renew(ctx, alice, 0, 2)
	require.NoError(t, err)
	clock.Advance(2 * domain.Month)
	_, _, err = svc.Withdraw(ctx, alice, 0)
	require.NoError(t, err)
	_, _, err = svc.EarlyWithdraw(ctx, alice, 1)
	require.NoError(t, err)
	_, _, err = svc.EarlyWithdraw(ctx, alice, 5)
	assert.ErrorIs(t, err, util.ErrNotFound)

	auditLog.AssertExpectations(t)
}

func TestInvalidOwnerIsNotAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.CreateDeposit(ctx, "bob", dec("1"), 1)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, _, err = f.svc.Withdraw(ctx, "0x1234", 0)
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	_, _, err = f.svc.GetTransactionHistory(ctx, "", 10, 0)
	assert.ErrorIs(t, err, util.ErrInvalidInput)

	txs, total, err := f.store.GetTransactionsByAddress(ctx, nil, "bob", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, txs)
}

func TestRunInterestScheduler(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	_, _, err := f.svc.OpenAccount(ctx, alice)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.svc.RunInterestScheduler(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		acct, err := f.svc.GetAccount(context.Background(), alice)
		return err == nil && acct.TokenBalance.GreaterThan(dec("50000"))
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
