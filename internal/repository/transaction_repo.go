// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"fdvault/internal/domain"
)

// TransactionRepository defines the interface for audit transaction records.
type TransactionRepository interface {
	// CreateTransaction adds a new record and sets its ID.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// UpdateTransactionStatus records the outcome of a pending record. Nil
	// txRef or amount leave the stored values unchanged.
	UpdateTransactionStatus(ctx context.Context, q DBExecutor, id int64, status domain.TransactionStatus, txRef *string, amount *decimal.Decimal) error
	// GetTransactionsByAddress returns a page of an address's records, newest
	// first, and the total number of records for the address.
	GetTransactionsByAddress(ctx context.Context, q DBExecutor, address string, limit, offset int) ([]domain.Transaction, int64, error)
}
