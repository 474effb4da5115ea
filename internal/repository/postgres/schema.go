// internal/repository/postgres/schema.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fdvault/internal/repository"
	"fdvault/pkg/db"
)

// schema creates the audit and snapshot tables. Amount columns are
// unconstrained NUMERIC since wei inputs are unbounded.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		user_address TEXT NOT NULL,
		type TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		tx_ref TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_user_address_idx ON transactions (user_address, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS fixed_deposits (
		id BIGSERIAL PRIMARY KEY,
		user_address TEXT NOT NULL,
		deposit_index INTEGER NOT NULL,
		amount NUMERIC NOT NULL,
		months INTEGER NOT NULL,
		start_date TIMESTAMPTZ NOT NULL,
		maturity_date TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		tx_ref TEXT,
		UNIQUE (user_address, deposit_index)
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		owner TEXT PRIMARY KEY,
		token_balance NUMERIC NOT NULL,
		eth_balance NUMERIC NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_deposits (
		owner TEXT NOT NULL REFERENCES accounts (owner) ON DELETE CASCADE,
		deposit_index INTEGER NOT NULL,
		principal NUMERIC NOT NULL,
		start_time TIMESTAMPTZ NOT NULL,
		months INTEGER NOT NULL,
		withdrawn BOOLEAN NOT NULL,
		renewed BOOLEAN NOT NULL,
		PRIMARY KEY (owner, deposit_index)
	)`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, conn *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// NewTxRunner runs repository work inside database transactions.
func NewTxRunner(conn db.DBTxBeginner) repository.TxRunner {
	return func(ctx context.Context, fn func(q repository.DBExecutor) error) error {
		return db.RunInTx(ctx, conn, func(tx *sqlx.Tx) error {
			return fn(tx)
		})
	}
}
