// Package audit records every ledger command in the transaction log and
// publishes a completion event. Failures here are logged and counted; they
// never change the outcome of the ledger command.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fdvault/internal/domain"
	"fdvault/internal/repository"
	"fdvault/internal/util"
)

// Event is published once per completed command.
type Event struct {
	Ref          string                   `json:"ref"`
	Type         domain.TransactionType   `json:"type"`
	Owner        string                   `json:"owner"`
	Counterparty string                   `json:"counterparty,omitempty"`
	AmountWei    string                   `json:"amount_wei"`
	Status       domain.TransactionStatus `json:"status"`
	Error        string                   `json:"error,omitempty"`
	OccurredAt   time.Time                `json:"occurred_at"`
}

// Publisher ships events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// FailureCounter is notified when an audit stage fails.
type FailureCounter interface {
	AuditFailure(stage string)
}

// Outcome is what Complete records about a finished command.
type Outcome struct {
	Err          error
	Ref          string
	Counterparty string
	// Amount, when set on success, replaces the amount Begin recorded.
	Amount *decimal.Decimal
	// Deposit, when set, is upserted into the fixed deposit history in the
	// same unit of work as the status update.
	Deposit *domain.FixedDepositRecord
}

// Log writes audit records through the repositories.
type Log struct {
	reader       repository.DBExecutor
	runInTx      repository.TxRunner
	transactions repository.TransactionRepository
	deposits     repository.FixedDepositRepository
	publisher    Publisher
	failures     FailureCounter
	logger       *zap.Logger
}

// NewLog creates an audit Log. reader serves history queries; publisher
// and failures may be nil.
func NewLog(
	reader repository.DBExecutor,
	runInTx repository.TxRunner,
	transactions repository.TransactionRepository,
	deposits repository.FixedDepositRepository,
	publisher Publisher,
	failures FailureCounter,
	logger *zap.Logger,
) *Log {
	return &Log{
		reader:       reader,
		runInTx:      runInTx,
		transactions: transactions,
		deposits:     deposits,
		publisher:    publisher,
		failures:     failures,
		logger:       logger,
	}
}

// Begin writes a pending record for a command about to run. It returns nil
// when the record could not be written.
func (l *Log) Begin(ctx context.Context, owner string, txType domain.TransactionType, amount decimal.Decimal) *domain.Transaction {
	record := domain.NewTransaction(owner, txType, amount)
	if err := l.transactions.CreateTransaction(ctx, l.reader, record); err != nil {
		l.fail("begin", err, zap.String("owner", owner), zap.String("type", string(txType)))
		return nil
	}
	return record
}

// Complete marks record success or failed, stores the deposit mirror and
// publishes the event. record may be nil when Begin failed.
func (l *Log) Complete(ctx context.Context, record *domain.Transaction, outcome Outcome) {
	if record == nil {
		return
	}

	status := domain.TransactionStatusSuccess
	if outcome.Err != nil {
		status = domain.TransactionStatusFailed
	}
	var ref *string
	if outcome.Ref != "" {
		r := outcome.Ref
		ref = &r
	}
	var amount *decimal.Decimal
	if outcome.Amount != nil && outcome.Err == nil {
		amount = outcome.Amount
	}

	err := l.runInTx(ctx, func(q repository.DBExecutor) error {
		if err := l.transactions.UpdateTransactionStatus(ctx, q, record.ID, status, ref, amount); err != nil {
			return err
		}
		if outcome.Deposit != nil && outcome.Err == nil {
			if err := l.deposits.UpsertFixedDeposit(ctx, q, outcome.Deposit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.fail("complete", err, zap.Int64("transaction_id", record.ID))
	}
	record.Status = status
	record.TxRef = ref
	if amount != nil {
		record.Amount = *amount
	}

	if l.publisher == nil {
		return
	}
	event := Event{
		Ref:          outcome.Ref,
		Type:         record.Type,
		Owner:        record.UserAddress,
		Counterparty: outcome.Counterparty,
		AmountWei:    domain.ToWei(record.Amount),
		Status:       status,
		OccurredAt:   time.Now().UTC(),
	}
	if outcome.Err != nil {
		event.Error = util.ErrorKind(outcome.Err)
	}
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.fail("publish", err, zap.String("ref", outcome.Ref))
	}
}

// Transactions returns a page of owner's audit records, newest first.
func (l *Log) Transactions(ctx context.Context, owner string, limit, offset int) ([]domain.Transaction, int64, error) {
	txs, total, err := l.transactions.GetTransactionsByAddress(ctx, l.reader, owner, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction history: %w", err)
	}
	return txs, total, nil
}

// FixedDeposits returns owner's fixed deposit history by deposit index.
func (l *Log) FixedDeposits(ctx context.Context, owner string) ([]domain.FixedDepositRecord, error) {
	records, err := l.deposits.GetFixedDepositsByAddress(ctx, l.reader, owner)
	if err != nil {
		return nil, fmt.Errorf("fixed deposit history: %w", err)
	}
	return records, nil
}

func (l *Log) fail(stage string, err error, fields ...zap.Field) {
	l.logger.Warn("Audit "+stage+" failed", append(fields, zap.Error(err))...)
	if l.failures != nil {
		l.failures.AuditFailure(stage)
	}
}
