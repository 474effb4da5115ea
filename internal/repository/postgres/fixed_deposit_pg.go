// internal/repository/postgres/fixed_deposit_pg.go
package postgres

import (
	"context"
	"fmt"

	"fdvault/internal/domain"
	"fdvault/internal/repository"
)

// FixedDepositRepository implements repository.FixedDepositRepository for PostgreSQL.
type FixedDepositRepository struct{}

// NewFixedDepositRepository creates a new FixedDepositRepository.
func NewFixedDepositRepository() repository.FixedDepositRepository {
	return &FixedDepositRepository{}
}

// UpsertFixedDeposit writes the record keyed by (user_address, deposit_index).
func (r *FixedDepositRepository) UpsertFixedDeposit(ctx context.Context, q repository.DBExecutor, record *domain.FixedDepositRecord) error {
	query := `INSERT INTO fixed_deposits (user_address, deposit_index, amount, months, start_date, maturity_date, status, tx_ref)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
              ON CONFLICT (user_address, deposit_index) DO UPDATE SET
                  amount = EXCLUDED.amount,
                  months = EXCLUDED.months,
                  start_date = EXCLUDED.start_date,
                  maturity_date = EXCLUDED.maturity_date,
                  status = EXCLUDED.status,
                  tx_ref = EXCLUDED.tx_ref
              RETURNING id`

	err := q.QueryRowContext(ctx, query,
		record.UserAddress,
		record.DepositIndex,
		record.Amount,
		record.Months,
		record.StartDate,
		record.MaturityDate,
		record.Status,
		record.TxRef,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert fixed deposit %d of %s: %w", record.DepositIndex, record.UserAddress, err)
	}
	return nil
}

// GetFixedDepositsByAddress lists an address's deposit records.
func (r *FixedDepositRepository) GetFixedDepositsByAddress(ctx context.Context, q repository.DBExecutor, address string) ([]domain.FixedDepositRecord, error) {
	records := []domain.FixedDepositRecord{}
	query := `
		SELECT id, user_address, deposit_index, amount, months, start_date, maturity_date, status, tx_ref
		FROM fixed_deposits
		WHERE user_address = $1
		ORDER BY deposit_index`
	if err := q.SelectContext(ctx, &records, query, address); err != nil {
		return nil, fmt.Errorf("failed to fetch fixed deposits for %s: %w", address, err)
	}
	return records, nil
}
