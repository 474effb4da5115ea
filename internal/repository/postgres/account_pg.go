// internal/repository/postgres/account_pg.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fdvault/internal/domain"
	"fdvault/internal/repository"
)

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() repository.AccountRepository {
	return &AccountRepository{}
}

type accountRow struct {
	Owner        string          `db:"owner"`
	TokenBalance decimal.Decimal `db:"token_balance"`
	EthBalance   decimal.Decimal `db:"eth_balance"`
}

type depositRow struct {
	Owner        string          `db:"owner"`
	DepositIndex int             `db:"deposit_index"`
	Principal    decimal.Decimal `db:"principal"`
	StartTime    time.Time       `db:"start_time"`
	Months       int             `db:"months"`
	Withdrawn    bool            `db:"withdrawn"`
	Renewed      bool            `db:"renewed"`
}

// SaveSnapshot replaces the stored ledger state. Run it inside a transaction.
func (r *AccountRepository) SaveSnapshot(ctx context.Context, q repository.DBExecutor, accounts []domain.Account) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM account_deposits`); err != nil {
		return fmt.Errorf("failed to clear account deposits: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("failed to clear accounts: %w", err)
	}

	now := time.Now().UTC()
	for _, acct := range accounts {
		_, err := q.ExecContext(ctx,
			`INSERT INTO accounts (owner, token_balance, eth_balance, updated_at) VALUES ($1, $2, $3, $4)`,
			acct.Owner, acct.TokenBalance, acct.EthBalance, now)
		if err != nil {
			return fmt.Errorf("failed to save account %s: %w", acct.Owner, err)
		}
		for i, fd := range acct.Deposits {
			_, err := q.ExecContext(ctx,
				`INSERT INTO account_deposits (owner, deposit_index, principal, start_time, months, withdrawn, renewed)
                 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				acct.Owner, i, fd.Principal, fd.StartTime, fd.Months, fd.Withdrawn, fd.Renewed)
			if err != nil {
				return fmt.Errorf("failed to save deposit %d of %s: %w", i, acct.Owner, err)
			}
		}
	}
	return nil
}

// LoadSnapshot reads the stored ledger state ordered by owner.
func (r *AccountRepository) LoadSnapshot(ctx context.Context, q repository.DBExecutor) ([]domain.Account, error) {
	var rows []accountRow
	if err := q.SelectContext(ctx, &rows, `SELECT owner, token_balance, eth_balance FROM accounts ORDER BY owner`); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	var deps []depositRow
	err := q.SelectContext(ctx, &deps, `
		SELECT owner, deposit_index, principal, start_time, months, withdrawn, renewed
		FROM account_deposits
		ORDER BY owner, deposit_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to load account deposits: %w", err)
	}

	byOwner := make(map[string][]domain.FixedDeposit, len(rows))
	for _, d := range deps {
		byOwner[d.Owner] = append(byOwner[d.Owner], domain.FixedDeposit{
			Owner:     d.Owner,
			Principal: d.Principal,
			StartTime: d.StartTime.UTC(),
			Months:    d.Months,
			Withdrawn: d.Withdrawn,
			Renewed:   d.Renewed,
		})
	}

	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		deposits := byOwner[row.Owner]
		if deposits == nil {
			deposits = []domain.FixedDeposit{}
		}
		accounts = append(accounts, domain.Account{
			Owner:        row.Owner,
			TokenBalance: row.TokenBalance,
			EthBalance:   row.EthBalance,
			Deposits:     deposits,
		})
	}
	return accounts, nil
}
