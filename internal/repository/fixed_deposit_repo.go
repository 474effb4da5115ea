// internal/repository/fixed_deposit_repo.go
package repository

import (
	"context"

	"fdvault/internal/domain"
)

// FixedDepositRepository stores the audit mirror of ledger deposits.
type FixedDepositRepository interface {
	// UpsertFixedDeposit inserts the record or replaces the one with the same
	// (UserAddress, DepositIndex).
	UpsertFixedDeposit(ctx context.Context, q DBExecutor, record *domain.FixedDepositRecord) error
	// GetFixedDepositsByAddress lists an address's records by deposit index.
	GetFixedDepositsByAddress(ctx context.Context, q DBExecutor, address string) ([]domain.FixedDepositRecord, error)
}
