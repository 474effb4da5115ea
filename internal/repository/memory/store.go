// Package memory keeps audit records and ledger snapshots in process memory.
// It backs STORAGE=memory and the API tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"fdvault/internal/domain"
	"fdvault/internal/repository"
	"fdvault/internal/util"
)

// Store implements every repository interface over in-memory slices.
// Repository methods ignore the DBExecutor argument.
type Store struct {
	mu           sync.Mutex
	nextID       int64
	transactions []domain.Transaction
	deposits     map[depositKey]domain.FixedDepositRecord
	snapshot     []domain.Account
}

type depositKey struct {
	address string
	index   int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		transactions: make([]domain.Transaction, 0),
		deposits:     make(map[depositKey]domain.FixedDepositRecord),
	}
}

// RunInTx calls fn directly; each Store method is atomic on its own.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.DBExecutor) error) error {
	return fn(nil)
}

// CreateTransaction appends a record and assigns its ID.
func (s *Store) CreateTransaction(ctx context.Context, _ repository.DBExecutor, transaction *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	transaction.ID = s.nextID
	s.transactions = append(s.transactions, *transaction)
	return nil
}

// UpdateTransactionStatus sets the outcome of a stored record.
func (s *Store) UpdateTransactionStatus(ctx context.Context, _ repository.DBExecutor, id int64, status domain.TransactionStatus, txRef *string, amount *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.transactions {
		if s.transactions[i].ID != id {
			continue
		}
		s.transactions[i].Status = status
		if txRef != nil {
			ref := *txRef
			s.transactions[i].TxRef = &ref
		}
		if amount != nil {
			s.transactions[i].Amount = *amount
		}
		return nil
	}
	return fmt.Errorf("transaction %d: %w", id, util.ErrNotFound)
}

// GetTransactionsByAddress pages through an address's records, newest first.
func (s *Store) GetTransactionsByAddress(ctx context.Context, _ repository.DBExecutor, address string, limit, offset int) ([]domain.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].UserAddress == address {
			matched = append(matched, s.transactions[i])
		}
	}

	total := int64(len(matched))
	page := []domain.Transaction{}
	if offset < len(matched) {
		end := len(matched)
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}
		page = append(page, matched[offset:end]...)
	}
	return page, total, nil
}

// UpsertFixedDeposit stores the record under (UserAddress, DepositIndex).
func (s *Store) UpsertFixedDeposit(ctx context.Context, _ repository.DBExecutor, record *domain.FixedDepositRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := depositKey{address: record.UserAddress, index: record.DepositIndex}
	if existing, ok := s.deposits[key]; ok {
		record.ID = existing.ID
	} else {
		s.nextID++
		record.ID = s.nextID
	}
	s.deposits[key] = *record
	return nil
}

// GetFixedDepositsByAddress lists an address's records by deposit index.
func (s *Store) GetFixedDepositsByAddress(ctx context.Context, _ repository.DBExecutor, address string) ([]domain.FixedDepositRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := []domain.FixedDepositRecord{}
	for key, rec := range s.deposits {
		if key.address == address {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].DepositIndex < records[j].DepositIndex })
	return records, nil
}

// SaveSnapshot replaces the held snapshot with a copy of accounts.
func (s *Store) SaveSnapshot(ctx context.Context, _ repository.DBExecutor, accounts []domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = copyAccounts(accounts)
	return nil
}

// LoadSnapshot returns a copy of the held snapshot.
func (s *Store) LoadSnapshot(ctx context.Context, _ repository.DBExecutor) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyAccounts(s.snapshot), nil
}

func copyAccounts(accounts []domain.Account) []domain.Account {
	out := make([]domain.Account, len(accounts))
	for i, acct := range accounts {
		out[i] = acct
		out[i].Deposits = append([]domain.FixedDeposit{}, acct.Deposits...)
	}
	return out
}

var (
	_ repository.TransactionRepository  = (*Store)(nil)
	_ repository.FixedDepositRepository = (*Store)(nil)
	_ repository.AccountRepository      = (*Store)(nil)
)
