// internal/api/types/response.go
package types

import (
	"time"

	"github.com/shopspring/decimal"

	"fdvault/internal/domain"
)

// PaginatedResponse defines a generic structure for paginated API responses.
// T represents the type of data contained in the 'Data' slice.
type PaginatedResponse[T any] struct {
	Data       []T   `json:"data"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	TotalCount int64 `json:"total_count"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Amount carries a token amount as an exact wei integer and as the
// two-digit display string.
type Amount struct {
	Wei     string `json:"wei"`
	Display string `json:"display"`
}

// NewAmount renders d for the wire.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Wei: domain.ToWei(d), Display: domain.FormatDisplay(d)}
}

// DepositView is one fixed deposit as seen at a given instant.
type DepositView struct {
	Index        int       `json:"index"`
	Principal    Amount    `json:"principal"`
	Months       int       `json:"months"`
	StartTime    time.Time `json:"start_time"`
	MaturityTime time.Time `json:"maturity_time"`
	Matured      bool      `json:"matured"`
	Withdrawn    bool      `json:"withdrawn"`
	Renewed      bool      `json:"renewed"`
	Status       string    `json:"status"`
}

// NewDepositView renders the deposit at index as of now.
func NewDepositView(index int, fd domain.FixedDeposit, now time.Time) DepositView {
	return DepositView{
		Index:        index,
		Principal:    NewAmount(fd.Principal),
		Months:       fd.Months,
		StartTime:    fd.StartTime,
		MaturityTime: fd.MaturityTime(),
		Matured:      fd.IsMatured(now),
		Withdrawn:    fd.Withdrawn,
		Renewed:      fd.Renewed,
		Status:       string(fd.Status()),
	}
}

// AccountView is an account's balances and deposits.
type AccountView struct {
	Owner        string        `json:"owner"`
	TokenBalance Amount        `json:"token_balance"`
	EthBalance   Amount        `json:"eth_balance"`
	Deposits     []DepositView `json:"deposits"`
}

// NewAccountView renders acct as of now.
func NewAccountView(acct domain.Account, now time.Time) AccountView {
	view := AccountView{
		Owner:        acct.Owner,
		TokenBalance: NewAmount(acct.TokenBalance),
		EthBalance:   NewAmount(acct.EthBalance),
		Deposits:     make([]DepositView, 0, len(acct.Deposits)),
	}
	for i, fd := range acct.Deposits {
		view.Deposits = append(view.Deposits, NewDepositView(i, fd, now))
	}
	return view
}

// TransactionView is an audit record on the wire.
type TransactionView struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Amount    Amount    `json:"amount"`
	TxRef     *string   `json:"tx_ref"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTransactionView renders an audit record.
func NewTransactionView(tx domain.Transaction) TransactionView {
	return TransactionView{
		ID:        tx.ID,
		Type:      string(tx.Type),
		Amount:    NewAmount(tx.Amount),
		TxRef:     tx.TxRef,
		Status:    string(tx.Status),
		CreatedAt: tx.CreatedAt,
	}
}

// FixedDepositRecordView is a deposit audit record on the wire.
type FixedDepositRecordView struct {
	Index        int       `json:"index"`
	Amount       Amount    `json:"amount"`
	Months       int       `json:"months"`
	StartDate    time.Time `json:"start_date"`
	MaturityDate time.Time `json:"maturity_date"`
	Status       string    `json:"status"`
	TxRef        *string   `json:"tx_ref"`
}

// NewFixedDepositRecordView renders a deposit audit record.
func NewFixedDepositRecordView(rec domain.FixedDepositRecord) FixedDepositRecordView {
	return FixedDepositRecordView{
		Index:        rec.DepositIndex,
		Amount:       NewAmount(rec.Amount),
		Months:       rec.Months,
		StartDate:    rec.StartDate,
		MaturityDate: rec.MaturityDate,
		Status:       string(rec.Status),
		TxRef:        rec.TxRef,
	}
}

// StatsView is the vault aggregate on the wire.
type StatsView struct {
	Accounts       int    `json:"accounts"`
	ActiveDeposits int    `json:"active_deposits"`
	TotalLocked    Amount `json:"total_locked"`
	TotalTokens    Amount `json:"total_tokens"`
	TotalEth       Amount `json:"total_eth"`
}

// NewStatsView renders vault stats.
func NewStatsView(s domain.VaultStats) StatsView {
	return StatsView{
		Accounts:       s.Accounts,
		ActiveDeposits: s.ActiveDeposits,
		TotalLocked:    NewAmount(s.TotalLocked),
		TotalTokens:    NewAmount(s.TotalTokens),
		TotalEth:       NewAmount(s.TotalEth),
	}
}
