// internal/domain/account.go
package domain

import "github.com/shopspring/decimal"

// Account is a read-only view of one owner's balances and deposits.
// Deposits are in creation order; the slice index is the deposit index.
type Account struct {
	Owner        string          `json:"owner"`
	TokenBalance decimal.Decimal `json:"token_balance"`
	EthBalance   decimal.Decimal `json:"eth_balance"`
	Deposits     []FixedDeposit  `json:"deposits"`
}

// VaultStats aggregates the ledger at a single instant.
type VaultStats struct {
	Accounts       int             `json:"accounts"`
	ActiveDeposits int             `json:"active_deposits"`
	TotalLocked    decimal.Decimal `json:"total_locked"`
	TotalTokens    decimal.Decimal `json:"total_tokens"`
	TotalEth       decimal.Decimal `json:"total_eth"`
}
