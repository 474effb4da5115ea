// internal/repository/account_repo.go
package repository

import (
	"context"

	"fdvault/internal/domain"
)

// AccountRepository persists ledger snapshots between process runs.
type AccountRepository interface {
	// SaveSnapshot replaces the stored snapshot with accounts.
	SaveSnapshot(ctx context.Context, q DBExecutor, accounts []domain.Account) error
	// LoadSnapshot returns the stored snapshot, or none if nothing was saved.
	LoadSnapshot(ctx context.Context, q DBExecutor) ([]domain.Account, error)
}
