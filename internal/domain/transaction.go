// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// TransactionType identifies the ledger command an audit record describes.
type TransactionType string

const (
	TransactionTypeEthToMT         TransactionType = "eth_to_mt"
	TransactionTypeMTToEth         TransactionType = "mt_to_eth"
	TransactionTypeCreateFD        TransactionType = "create_fd"
	TransactionTypeWithdrawFD      TransactionType = "withdraw_fd"
	TransactionTypeEarlyWithdrawFD TransactionType = "early_withdraw_fd"
	TransactionTypeRenewFD         TransactionType = "renew_fd"
	TransactionTypeTransfer        TransactionType = "transfer"
	TransactionTypeClaimInterest   TransactionType = "claim_interest"
)

// TransactionStatus is the outcome tag of an audit record.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Transaction is an audit log record of one ledger command.
type Transaction struct {
	ID          int64             `db:"id" json:"id"`
	UserAddress string            `db:"user_address" json:"user_address"`
	Type        TransactionType   `db:"type" json:"type"`
	Amount      decimal.Decimal   `db:"amount" json:"amount"` // NUMERIC in DB
	TxRef       *string           `db:"tx_ref" json:"tx_ref"` // command reference, set on completion
	Status      TransactionStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// NewTransaction creates a pending audit record.
func NewTransaction(userAddress string, txType TransactionType, amount decimal.Decimal) *Transaction {
	return &Transaction{
		UserAddress: userAddress,
		Type:        txType,
		Amount:      amount,
		Status:      TransactionStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// FixedDepositStatus is the audit vocabulary for a deposit's lifecycle.
type FixedDepositStatus string

const (
	FixedDepositStatusActive    FixedDepositStatus = "active"
	FixedDepositStatusWithdrawn FixedDepositStatus = "withdrawn"
	FixedDepositStatusRenewed   FixedDepositStatus = "renewed"
)

// FixedDepositRecord mirrors a ledger deposit in the audit log.
// (UserAddress, DepositIndex) identifies the ledger deposit.
type FixedDepositRecord struct {
	ID           int64              `db:"id" json:"id"`
	UserAddress  string             `db:"user_address" json:"user_address"`
	DepositIndex int                `db:"deposit_index" json:"deposit_index"`
	Amount       decimal.Decimal    `db:"amount" json:"amount"`
	Months       int                `db:"months" json:"months"`
	StartDate    time.Time          `db:"start_date" json:"start_date"`
	MaturityDate time.Time          `db:"maturity_date" json:"maturity_date"`
	Status       FixedDepositStatus `db:"status" json:"status"`
	TxRef        *string            `db:"tx_ref" json:"tx_ref"`
}

// NewFixedDepositRecord builds the audit mirror of a ledger deposit.
func NewFixedDepositRecord(index int, fd FixedDeposit, txRef string) *FixedDepositRecord {
	ref := txRef
	return &FixedDepositRecord{
		UserAddress:  fd.Owner,
		DepositIndex: index,
		Amount:       fd.Principal,
		Months:       fd.Months,
		StartDate:    fd.StartTime,
		MaturityDate: fd.MaturityTime(),
		Status:       fd.Status(),
		TxRef:        &ref,
	}
}
