// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"fdvault/internal/domain"
	"fdvault/internal/repository"
	"fdvault/internal/util"
)

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a new audit record using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (user_address, type, amount, tx_ref, status, created_at)
              VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	err := q.QueryRowContext(ctx, query,
		transaction.UserAddress,
		transaction.Type,
		transaction.Amount,
		transaction.TxRef,
		transaction.Status,
		transaction.CreatedAt,
	).Scan(&transaction.ID)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// UpdateTransactionStatus sets the outcome, command reference and settled
// amount of a record.
func (r *TransactionRepository) UpdateTransactionStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.TransactionStatus, txRef *string, amount *decimal.Decimal) error {
	query := `UPDATE transactions SET status = $1, tx_ref = COALESCE($2, tx_ref), amount = COALESCE($3, amount) WHERE id = $4`
	result, err := q.ExecContext(ctx, query, status, txRef, amount, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating transaction %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("transaction %d: %w", id, util.ErrNotFound)
	}
	return nil
}

// GetTransactionsByAddress retrieves a paginated list of an address's records.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) GetTransactionsByAddress(ctx context.Context, q repository.DBExecutor, address string, limit, offset int) ([]domain.Transaction, int64, error) {
	transactions := []domain.Transaction{}

	query := `
		SELECT id, user_address, type, amount, tx_ref, status, created_at
		FROM transactions
		WHERE user_address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	err := q.SelectContext(ctx, &transactions, query, address, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for %s: %w", address, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE user_address = $1`
	err = q.GetContext(ctx, &totalCount, countQuery, address)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for %s: %w", address, err)
	}

	return transactions, totalCount, nil
}
