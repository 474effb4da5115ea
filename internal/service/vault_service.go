// internal/service/vault_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fdvault/internal/audit"
	"fdvault/internal/domain"
	"fdvault/internal/ledger"
	"fdvault/internal/metrics"
	"fdvault/internal/repository"
	"fdvault/internal/util"
)

// VaultService defines the vault's business operations. Every command
// returns a reference that identifies it in the audit log.
type VaultService interface {
	OpenAccount(ctx context.Context, owner string) (domain.Account, bool, error)
	GetAccount(ctx context.Context, owner string) (domain.Account, error)
	FundEth(ctx context.Context, owner string, amount decimal.Decimal) (domain.Account, error)
	Convert(ctx context.Context, owner string, direction ledger.Direction, amount decimal.Decimal) (*ledger.ConversionResult, string, error)
	CreateDeposit(ctx context.Context, owner string, amount decimal.Decimal, months int) (*ledger.DepositResult, string, error)
	Withdraw(ctx context.Context, owner string, index int) (*ledger.PayoutResult, string, error)
	EarlyWithdraw(ctx context.Context, owner string, index int) (*ledger.PayoutResult, string, error)
	Renew(ctx context.Context, owner string, index, months int) (*ledger.DepositResult, string, error)
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*ledger.TransferResult, string, error)
	DistributeMonthlyInterest(ctx context.Context) (*ledger.DistributionResult, string)
	Stats(ctx context.Context) domain.VaultStats
	GetTransactionHistory(ctx context.Context, owner string, limit, offset int) ([]domain.Transaction, int64, error)
	GetFixedDepositHistory(ctx context.Context, owner string) ([]domain.FixedDepositRecord, error)
	SaveSnapshot(ctx context.Context) error
	LoadSnapshot(ctx context.Context) (int, error)
	RunInterestScheduler(ctx context.Context, every time.Duration)
	Now() time.Time
}

// AuditLog is the audit trail the service writes through.
type AuditLog interface {
	Begin(ctx context.Context, owner string, txType domain.TransactionType, amount decimal.Decimal) *domain.Transaction
	Complete(ctx context.Context, record *domain.Transaction, outcome audit.Outcome)
	Transactions(ctx context.Context, owner string, limit, offset int) ([]domain.Transaction, int64, error)
	FixedDeposits(ctx context.Context, owner string) ([]domain.FixedDepositRecord, error)
}

// Options tune a VaultService.
type Options struct {
	// OpeningEth and OpeningTokens seed an account the first time it is opened.
	OpeningEth    decimal.Decimal
	OpeningTokens decimal.Decimal
	// Now is the service clock; time.Now when nil.
	Now func() time.Time
}

// vaultService implements the VaultService interface.
type vaultService struct {
	ledger      *ledger.Ledger
	audit       AuditLog
	accountRepo repository.AccountRepository
	reader      repository.DBExecutor
	runInTx     repository.TxRunner
	metrics     *metrics.Metrics
	logger      *zap.Logger
	opts        Options
}

// NewVaultService creates a new instance of VaultService.
func NewVaultService(
	l *ledger.Ledger,
	auditLog AuditLog,
	accountRepo repository.AccountRepository,
	reader repository.DBExecutor,
	runInTx repository.TxRunner,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts Options,
) VaultService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &vaultService{
		ledger:      l,
		audit:       auditLog,
		accountRepo: accountRepo,
		reader:      reader,
		runInTx:     runInTx,
		metrics:     m,
		logger:      logger,
		opts:        opts,
	}
}

func (s *vaultService) Now() time.Time {
	return s.opts.Now().UTC()
}

func validateOwner(op, owner string) (string, error) {
	if !domain.IsAccountAddress(owner) {
		return "", fmt.Errorf("%s: %q is not an account address: %w", op, owner, util.ErrInvalidInput)
	}
	return domain.NormalizeOwner(owner), nil
}

// command runs fn between a pending audit record and its completion, and
// observes the outcome in logs and metrics.
func (s *vaultService) command(ctx context.Context, ref string, txType domain.TransactionType, owner string, amount decimal.Decimal, fn func() (audit.Outcome, error)) error {
	start := time.Now()
	record := s.audit.Begin(ctx, owner, txType, amount)

	outcome, err := fn()
	outcome.Ref = ref
	outcome.Err = err
	s.audit.Complete(ctx, record, outcome)
	s.metrics.ObserveCommand(string(txType), err, time.Since(start))

	fields := []zap.Field{
		zap.String("command", string(txType)),
		zap.String("owner", owner),
		zap.String("amount", amount.String()),
		zap.String("ref", ref),
	}
	switch kind := util.ErrorKind(err); kind {
	case "ok":
		s.logger.Info("Command completed", fields...)
	case "internal":
		s.logger.Error("Command failed", append(fields, zap.Error(err))...)
	default:
		s.logger.Info("Command rejected", append(fields, zap.String("reason", kind), zap.Error(err))...)
	}
	return err
}

// OpenAccount seeds a new account with the configured opening balances.
func (s *vaultService) OpenAccount(ctx context.Context, owner string) (domain.Account, bool, error) {
	owner, err := validateOwner("open account", owner)
	if err != nil {
		return domain.Account{}, false, err
	}
	acct, created, err := s.ledger.OpenAccount(owner, s.opts.OpeningEth, s.opts.OpeningTokens)
	if err != nil {
		return domain.Account{}, false, err
	}
	if created {
		s.logger.Info("Account opened", zap.String("owner", owner))
	}
	return acct, created, nil
}

// GetAccount returns the owner's balances and deposits.
func (s *vaultService) GetAccount(ctx context.Context, owner string) (domain.Account, error) {
	owner, err := validateOwner("get account", owner)
	if err != nil {
		return domain.Account{}, err
	}
	return s.ledger.Account(owner), nil
}

// FundEth credits ETH to the owner.
func (s *vaultService) FundEth(ctx context.Context, owner string, amount decimal.Decimal) (domain.Account, error) {
	owner, err := validateOwner("fund", owner)
	if err != nil {
		return domain.Account{}, err
	}
	start := time.Now()
	acct, err := s.ledger.FundEth(owner, amount)
	s.metrics.ObserveCommand("fund_eth", err, time.Since(start))
	if err != nil {
		return domain.Account{}, err
	}
	s.logger.Info("Account funded", zap.String("owner", owner), zap.String("amount", amount.String()))
	return acct, nil
}

// Convert swaps ETH and mT at the ledger's fixed rate.
func (s *vaultService) Convert(ctx context.Context, owner string, direction ledger.Direction, amount decimal.Decimal) (*ledger.ConversionResult, string, error) {
	owner, err := validateOwner("convert", owner)
	if err != nil {
		return nil, "", err
	}
	txType := domain.TransactionTypeEthToMT
	switch direction {
	case ledger.EthToToken:
	case ledger.TokenToEth:
		txType = domain.TransactionTypeMTToEth
	default:
		return nil, "", fmt.Errorf("convert: unknown direction %q: %w", direction, util.ErrInvalidInput)
	}

	var res *ledger.ConversionResult
	ref := uuid.NewString()
	err = s.command(ctx, ref, txType, owner, amount, func() (audit.Outcome, error) {
		var err error
		res, err = s.ledger.Convert(owner, direction, amount)
		return audit.Outcome{}, err
	})
	if err != nil {
		return nil, ref, err
	}
	return res, ref, nil
}

// CreateDeposit locks amount mT for months.
func (s *vaultService) CreateDeposit(ctx context.Context, owner string, amount decimal.Decimal, months int) (*ledger.DepositResult, string, error) {
	owner, err := validateOwner("create deposit", owner)
	if err != nil {
		return nil, "", err
	}

	var res *ledger.DepositResult
	ref := uuid.NewString()
	err = s.command(ctx, ref, domain.TransactionTypeCreateFD, owner, amount, func() (audit.Outcome, error) {
		var err error
		res, err = s.ledger.CreateDeposit(owner, amount, months, s.Now())
		if err != nil {
			return audit.Outcome{}, err
		}
		return audit.Outcome{Deposit: domain.NewFixedDepositRecord(res.Index, res.Deposit, ref)}, nil
	})
	if err != nil {
		return nil, ref, err
	}
	return res, ref, nil
}

// depositPrincipal is the principal the pending audit record carries; zero
// when the deposit does not exist. Successful commands settle the record
// with the principal they actually closed or renewed.
func (s *vaultService) depositPrincipal(owner string, index int) decimal.Decimal {
	acct := s.ledger.Account(owner)
	if index < 0 || index >= len(acct.Deposits) {
		return decimal.Zero
	}
	return acct.Deposits[index].Principal
}

func (s *vaultService) payout(
	ctx context.Context,
	op string,
	txType domain.TransactionType,
	owner string,
	index int,
	fn func(owner string, index int, now time.Time) (*ledger.PayoutResult, error),
) (*ledger.PayoutResult, string, error) {
	owner, err := validateOwner(op, owner)
	if err != nil {
		return nil, "", err
	}

	var res *ledger.PayoutResult
	ref := uuid.NewString()
	err = s.command(ctx, ref, txType, owner, s.depositPrincipal(owner, index), func() (audit.Outcome, error) {
		var err error
		res, err = fn(owner, index, s.Now())
		if err != nil {
			return audit.Outcome{}, err
		}
		return audit.Outcome{
			Amount:  &res.Principal,
			Deposit: domain.NewFixedDepositRecord(res.Index, res.Deposit, ref),
		}, nil
	})
	if err != nil {
		return nil, ref, err
	}
	return res, ref, nil
}

// Withdraw closes a matured deposit.
func (s *vaultService) Withdraw(ctx context.Context, owner string, index int) (*ledger.PayoutResult, string, error) {
	return s.payout(ctx, "withdraw", domain.TransactionTypeWithdrawFD, owner, index, s.ledger.Withdraw)
}

// EarlyWithdraw closes a deposit at the penalised rate.
func (s *vaultService) EarlyWithdraw(ctx context.Context, owner string, index int) (*ledger.PayoutResult, string, error) {
	return s.payout(ctx, "early withdraw", domain.TransactionTypeEarlyWithdrawFD, owner, index, s.ledger.EarlyWithdraw)
}

// Renew restarts a deposit with a new term.
func (s *vaultService) Renew(ctx context.Context, owner string, index, months int) (*ledger.DepositResult, string, error) {
	owner, err := validateOwner("renew", owner)
	if err != nil {
		return nil, "", err
	}

	var res *ledger.DepositResult
	ref := uuid.NewString()
	err = s.command(ctx, ref, domain.TransactionTypeRenewFD, owner, s.depositPrincipal(owner, index), func() (audit.Outcome, error) {
		var err error
		res, err = s.ledger.Renew(owner, index, months, s.Now())
		if err != nil {
			return audit.Outcome{}, err
		}
		return audit.Outcome{
			Amount:  &res.Deposit.Principal,
			Deposit: domain.NewFixedDepositRecord(res.Index, res.Deposit, ref),
		}, nil
	})
	if err != nil {
		return nil, ref, err
	}
	if res.ForfeitedInterest.IsPositive() {
		s.logger.Info("Renewal forfeited accrued interest",
			zap.String("owner", owner), zap.Int("index", index), zap.String("forfeited", res.ForfeitedInterest.String()))
	}
	return res, ref, nil
}

// Transfer moves mT from one account to another.
func (s *vaultService) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*ledger.TransferResult, string, error) {
	from, err := validateOwner("transfer", from)
	if err != nil {
		return nil, "", err
	}

	var res *ledger.TransferResult
	ref := uuid.NewString()
	err = s.command(ctx, ref, domain.TransactionTypeTransfer, from, amount, func() (audit.Outcome, error) {
		var err error
		res, err = s.ledger.Transfer(from, to, amount)
		if err != nil {
			return audit.Outcome{Counterparty: domain.NormalizeOwner(to)}, err
		}
		return audit.Outcome{Counterparty: res.To}, nil
	})
	if err != nil {
		return nil, ref, err
	}
	return res, ref, nil
}

// DistributeMonthlyInterest runs one global interest pass and records a
// claim_interest entry per credited account under a shared reference.
func (s *vaultService) DistributeMonthlyInterest(ctx context.Context) (*ledger.DistributionResult, string) {
	start := time.Now()
	ref := uuid.NewString()
	res := s.ledger.DistributeMonthlyInterest()

	for _, credit := range res.Credits {
		record := s.audit.Begin(ctx, credit.Owner, domain.TransactionTypeClaimInterest, credit.Amount)
		s.audit.Complete(ctx, record, audit.Outcome{Ref: ref})
	}
	s.metrics.ObserveCommand(string(domain.TransactionTypeClaimInterest), nil, time.Since(start))
	s.metrics.ObserveDistribution(res.Total)
	s.metrics.ObserveStats(s.ledger.Stats())

	s.logger.Info("Monthly interest distributed",
		zap.String("ref", ref),
		zap.Int("accounts", len(res.Credits)),
		zap.String("total", res.Total.String()),
		zap.String("rate", res.Rate.String()))
	return res, ref
}

// Stats aggregates the vault and refreshes the balance gauges.
func (s *vaultService) Stats(ctx context.Context) domain.VaultStats {
	stats := s.ledger.Stats()
	s.metrics.ObserveStats(stats)
	return stats
}

// GetTransactionHistory retrieves a paginated list of the owner's audit records.
func (s *vaultService) GetTransactionHistory(ctx context.Context, owner string, limit, offset int) ([]domain.Transaction, int64, error) {
	owner, err := validateOwner("transaction history", owner)
	if err != nil {
		return nil, 0, err
	}
	return s.audit.Transactions(ctx, owner, limit, offset)
}

// GetFixedDepositHistory retrieves the owner's deposit audit records.
func (s *vaultService) GetFixedDepositHistory(ctx context.Context, owner string) ([]domain.FixedDepositRecord, error) {
	owner, err := validateOwner("fixed deposit history", owner)
	if err != nil {
		return nil, err
	}
	return s.audit.FixedDeposits(ctx, owner)
}

// SaveSnapshot persists the ledger through the account repository.
func (s *vaultService) SaveSnapshot(ctx context.Context) error {
	accounts := s.ledger.Snapshot()
	err := s.runInTx(ctx, func(q repository.DBExecutor) error {
		return s.accountRepo.SaveSnapshot(ctx, q, accounts)
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	s.logger.Info("Ledger snapshot saved", zap.Int("accounts", len(accounts)))
	return nil
}

// LoadSnapshot restores the ledger from the account repository and
// returns the number of accounts loaded.
func (s *vaultService) LoadSnapshot(ctx context.Context) (int, error) {
	accounts, err := s.accountRepo.LoadSnapshot(ctx, s.reader)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	if err := s.ledger.Restore(accounts); err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	s.metrics.ObserveStats(s.ledger.Stats())
	s.logger.Info("Ledger snapshot loaded", zap.Int("accounts", len(accounts)))
	return len(accounts), nil
}

// RunInterestScheduler distributes interest every interval until ctx is done.
func (s *vaultService) RunInterestScheduler(ctx context.Context, every time.Duration) {
	tk := time.NewTicker(every)
	defer tk.Stop()

	s.logger.Info("Interest scheduler started", zap.Duration("interval", every))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Interest scheduler stopped")
			return
		case <-tk.C:
			s.DistributeMonthlyInterest(ctx)
		}
	}
}
