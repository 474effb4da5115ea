// Package ledger implements the fixed-deposit vault: per-account mT and ETH
// balances, fixed-deposit lifecycle and interest.
//
// Every command validates before it mutates, so a failed command leaves all
// balances and deposits untouched. Per-account commands serialise on the
// account's mutex while holding the ledger lock shared; whole-ledger passes
// (interest distribution, stats, snapshot, restore) hold it exclusively.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fdvault/internal/domain"
	"fdvault/internal/util"
)

// Ledger holds balances and fixed deposits for every account.
type Ledger struct {
	params Params

	mu sync.RWMutex

	accountsMu sync.Mutex // protects the accounts map itself
	accounts   map[string]*account
}

type account struct {
	mu       sync.Mutex
	owner    string
	tokens   decimal.Decimal
	eth      decimal.Decimal
	deposits []domain.FixedDeposit
}

// New creates an empty ledger.
func New(params Params) (*Ledger, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("ledger params: %w", err)
	}
	return &Ledger{
		params:   params,
		accounts: make(map[string]*account),
	}, nil
}

// Params returns the ledger's economic constants.
func (l *Ledger) Params() Params {
	return l.params
}

func (l *Ledger) lookup(owner string) *account {
	l.accountsMu.Lock()
	defer l.accountsMu.Unlock()
	return l.accounts[owner]
}

func (l *Ledger) getOrCreate(owner string) *account {
	l.accountsMu.Lock()
	defer l.accountsMu.Unlock()

	a, ok := l.accounts[owner]
	if !ok {
		a = &account{owner: owner}
		l.accounts[owner] = a
	}
	return a
}

// withAccount runs fn with the owner's account locked. When create is false
// and the account is unknown, fn receives a detached empty account: commands
// that only debit fail on it without registering the owner.
func (l *Ledger) withAccount(owner string, create bool, fn func(a *account) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var a *account
	if create {
		a = l.getOrCreate(owner)
	} else if a = l.lookup(owner); a == nil {
		a = &account{owner: owner}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(a)
}

func (a *account) view() domain.Account {
	deposits := make([]domain.FixedDeposit, len(a.deposits))
	copy(deposits, a.deposits)
	return domain.Account{
		Owner:        a.owner,
		TokenBalance: a.tokens,
		EthBalance:   a.eth,
		Deposits:     deposits,
	}
}

func (a *account) empty() bool {
	return a.tokens.IsZero() && a.eth.IsZero() && len(a.deposits) == 0
}

func (a *account) deposit(index int) (*domain.FixedDeposit, error) {
	if index < 0 || index >= len(a.deposits) {
		return nil, fmt.Errorf("deposit %d of %s: %w", index, a.owner, util.ErrNotFound)
	}
	return &a.deposits[index], nil
}

func validMonths(months int) error {
	if months < 1 {
		return fmt.Errorf("lock term must be at least one month, got %d: %w", months, util.ErrInvalidAmount)
	}
	if months > domain.MaxTermMonths {
		return fmt.Errorf("lock term must be at most %d months, got %d: %w", domain.MaxTermMonths, months, util.ErrInvalidAmount)
	}
	return nil
}

func positive(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = domain.TruncateToken(amount)
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount %s must be positive: %w", amount, util.ErrInvalidAmount)
	}
	return amount, nil
}

// Account returns the owner's balances and deposits. Unknown owners have
// zero balances and no deposits.
func (l *Ledger) Account(owner string) domain.Account {
	owner = domain.NormalizeOwner(owner)

	l.mu.RLock()
	defer l.mu.RUnlock()

	a := l.lookup(owner)
	if a == nil {
		return domain.Account{Owner: owner, Deposits: []domain.FixedDeposit{}}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view()
}

// OpenAccount registers owner with opening balances. Opening an account
// that already holds funds or deposits is a no-op; created reports whether
// the balances were applied.
func (l *Ledger) OpenAccount(owner string, eth, tokens decimal.Decimal) (acct domain.Account, created bool, err error) {
	owner = domain.NormalizeOwner(owner)
	eth, tokens = domain.TruncateToken(eth), domain.TruncateToken(tokens)
	if eth.IsNegative() || tokens.IsNegative() {
		return domain.Account{}, false, fmt.Errorf("open account %s: negative opening balance: %w", owner, util.ErrInvalidAmount)
	}

	err = l.withAccount(owner, true, func(a *account) error {
		if a.empty() {
			a.eth, a.tokens = eth, tokens
			created = true
		}
		acct = a.view()
		return nil
	})
	return acct, created, err
}

// FundEth credits ETH that arrived from outside the vault.
func (l *Ledger) FundEth(owner string, amount decimal.Decimal) (domain.Account, error) {
	owner = domain.NormalizeOwner(owner)
	amount, err := positive(amount)
	if err != nil {
		return domain.Account{}, fmt.Errorf("fund %s: %w", owner, err)
	}

	var acct domain.Account
	err = l.withAccount(owner, true, func(a *account) error {
		a.eth = a.eth.Add(amount)
		acct = a.view()
		return nil
	})
	return acct, err
}

// DepositResult describes a created or renewed deposit.
type DepositResult struct {
	Index        int
	Deposit      domain.FixedDeposit
	TokenBalance decimal.Decimal
	// ForfeitedInterest is what a full-rate payout over the elapsed term
	// would have credited. Renewal does not pay it.
	ForfeitedInterest decimal.Decimal
}

// CreateDeposit locks principal from the owner's token balance for months
// synthetic months.
func (l *Ledger) CreateDeposit(owner string, principal decimal.Decimal, months int, now time.Time) (*DepositResult, error) {
	owner = domain.NormalizeOwner(owner)
	principal, err := positive(principal)
	if err != nil {
		return nil, fmt.Errorf("create deposit: %w", err)
	}
	if err := validMonths(months); err != nil {
		return nil, fmt.Errorf("create deposit: %w", err)
	}

	var res *DepositResult
	err = l.withAccount(owner, false, func(a *account) error {
		if a.tokens.LessThan(principal) {
			return fmt.Errorf("%s holds %s mT, needs %s: %w", owner, a.tokens, principal, util.ErrInsufficientBalance)
		}
		fd := domain.FixedDeposit{
			Owner:     owner,
			Principal: principal,
			StartTime: now,
			Months:    months,
		}
		a.tokens = a.tokens.Sub(principal)
		a.deposits = append(a.deposits, fd)
		res = &DepositResult{
			Index:        len(a.deposits) - 1,
			Deposit:      fd,
			TokenBalance: a.tokens,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create deposit: %w", err)
	}
	return res, nil
}

// IsMatured reports whether deposit may be withdrawn at the full rate.
func IsMatured(deposit domain.FixedDeposit, now time.Time) bool {
	return deposit.IsMatured(now)
}

// PayoutResult describes a closed deposit.
type PayoutResult struct {
	Index        int
	Deposit      domain.FixedDeposit
	Principal    decimal.Decimal
	Interest     decimal.Decimal
	Payout       decimal.Decimal
	TokenBalance decimal.Decimal
}

func (a *account) close(index int, fd *domain.FixedDeposit, interest decimal.Decimal) *PayoutResult {
	payout := fd.Principal.Add(interest)
	fd.Withdrawn = true
	a.tokens = a.tokens.Add(payout)
	return &PayoutResult{
		Index:        index,
		Deposit:      *fd,
		Principal:    fd.Principal,
		Interest:     interest,
		Payout:       payout,
		TokenBalance: a.tokens,
	}
}

// Withdraw closes a matured deposit, paying principal plus compound
// interest at the full monthly rate over the locked term.
func (l *Ledger) Withdraw(owner string, index int, now time.Time) (*PayoutResult, error) {
	owner = domain.NormalizeOwner(owner)

	var res *PayoutResult
	err := l.withAccount(owner, false, func(a *account) error {
		fd, err := a.deposit(index)
		if err != nil {
			return err
		}
		if fd.Withdrawn {
			return fmt.Errorf("deposit %d: %w", index, util.ErrAlreadyWithdrawn)
		}
		if !fd.IsMatured(now) {
			return fmt.Errorf("deposit %d matures at %s: %w", index, fd.MaturityTime().Format(time.RFC3339), util.ErrNotMatured)
		}
		interest, err := CalculateInterest(fd.Principal, l.params.MonthlyRatePercent, fd.TermMonths())
		if err != nil {
			return err
		}
		res = a.close(index, fd, interest)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}
	return res, nil
}

// EarlyWithdraw closes a deposit regardless of maturity, paying interest at
// the penalised rate over the time actually elapsed.
func (l *Ledger) EarlyWithdraw(owner string, index int, now time.Time) (*PayoutResult, error) {
	owner = domain.NormalizeOwner(owner)

	var res *PayoutResult
	err := l.withAccount(owner, false, func(a *account) error {
		fd, err := a.deposit(index)
		if err != nil {
			return err
		}
		if fd.Withdrawn {
			return fmt.Errorf("deposit %d: %w", index, util.ErrAlreadyWithdrawn)
		}
		interest, err := CalculateInterest(fd.Principal, l.params.EarlyRatePercent(), fd.ElapsedMonths(now))
		if err != nil {
			return err
		}
		res = a.close(index, fd, interest)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("early withdraw: %w", err)
	}
	return res, nil
}

// Renew restarts an open deposit's clock with a new term. Interest accrued
// over the elapsed term is forfeited, not paid.
func (l *Ledger) Renew(owner string, index, newMonths int, now time.Time) (*DepositResult, error) {
	owner = domain.NormalizeOwner(owner)
	if err := validMonths(newMonths); err != nil {
		return nil, fmt.Errorf("renew: %w", err)
	}

	var res *DepositResult
	err := l.withAccount(owner, false, func(a *account) error {
		fd, err := a.deposit(index)
		if err != nil {
			return err
		}
		if fd.Withdrawn {
			return fmt.Errorf("deposit %d: %w", index, util.ErrAlreadyWithdrawn)
		}
		forfeited, err := CalculateInterest(fd.Principal, l.params.MonthlyRatePercent, fd.ElapsedMonths(now))
		if err != nil {
			return err
		}
		if now.After(fd.StartTime) {
			fd.StartTime = now
		}
		fd.Months = newMonths
		fd.Renewed = true
		res = &DepositResult{
			Index:             index,
			Deposit:           *fd,
			TokenBalance:      a.tokens,
			ForfeitedInterest: forfeited,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("renew: %w", err)
	}
	return res, nil
}

// TransferResult describes a completed token transfer.
type TransferResult struct {
	From        string
	To          string
	Amount      decimal.Decimal
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// Transfer moves mT between accounts. The debit and the credit happen under
// both account locks, taken in owner order.
func (l *Ledger) Transfer(from, to string, amount decimal.Decimal) (*TransferResult, error) {
	from = domain.NormalizeOwner(from)
	amount, err := positive(amount)
	if err != nil {
		return nil, fmt.Errorf("transfer: %w", err)
	}
	if !domain.IsAccountAddress(to) {
		return nil, fmt.Errorf("transfer: %q is not a 0x-prefixed 20-byte address: %w", to, util.ErrInvalidRecipient)
	}
	to = domain.NormalizeOwner(to)
	if to == from {
		return nil, fmt.Errorf("transfer: recipient equals sender: %w", util.ErrInvalidRecipient)
	}

	res, created, err := l.transfer(from, to, amount)
	if err != nil {
		if created {
			l.prune(to)
		}
		return nil, err
	}
	return res, nil
}

// transfer reports whether it registered the recipient.
func (l *Ledger) transfer(from, to string, amount decimal.Decimal) (*TransferResult, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	src := l.lookup(from)
	if src == nil {
		return nil, false, fmt.Errorf("transfer: %s holds 0 mT, needs %s: %w", from, amount, util.ErrInsufficientBalance)
	}
	dst := l.lookup(to)
	created := dst == nil
	if created {
		dst = l.getOrCreate(to)
	}

	first, second := src, dst
	if to < from {
		first, second = dst, src
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()

	if src.tokens.LessThan(amount) {
		return nil, created, fmt.Errorf("transfer: %s holds %s mT, needs %s: %w", from, src.tokens, amount, util.ErrInsufficientBalance)
	}
	src.tokens = src.tokens.Sub(amount)
	dst.tokens = dst.tokens.Add(amount)

	return &TransferResult{
		From:        from,
		To:          to,
		Amount:      amount,
		FromBalance: src.tokens,
		ToBalance:   dst.tokens,
	}, created, nil
}

// prune drops owner if it holds nothing. Account pointers are only obtained
// under the shared ledger lock, so none is outstanding here.
func (l *Ledger) prune(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a, ok := l.accounts[owner]; ok && a.empty() {
		delete(l.accounts, owner)
	}
}

// Direction selects the conversion pair.
type Direction string

const (
	EthToToken Direction = "eth_to_mt"
	TokenToEth Direction = "mt_to_eth"
)

// ConversionResult describes a completed conversion.
type ConversionResult struct {
	Owner        string
	Direction    Direction
	AmountIn     decimal.Decimal
	AmountOut    decimal.Decimal
	TokenBalance decimal.Decimal
	EthBalance   decimal.Decimal
}

// Convert swaps between the owner's ETH and mT balances at the fixed rate.
func (l *Ledger) Convert(owner string, direction Direction, amount decimal.Decimal) (*ConversionResult, error) {
	owner = domain.NormalizeOwner(owner)
	amount, err := positive(amount)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}

	var out decimal.Decimal
	switch direction {
	case EthToToken:
		out = domain.TruncateToken(amount.Mul(l.params.EthToTokenRate))
	case TokenToEth:
		out, _ = amount.QuoRem(l.params.EthToTokenRate, domain.TokenDecimals)
	default:
		return nil, fmt.Errorf("convert: unknown direction %q: %w", direction, util.ErrInvalidInput)
	}
	if !out.IsPositive() {
		return nil, fmt.Errorf("convert: %s is below the smallest convertible unit: %w", amount, util.ErrInvalidAmount)
	}

	var res *ConversionResult
	err = l.withAccount(owner, false, func(a *account) error {
		switch direction {
		case EthToToken:
			if a.eth.LessThan(amount) {
				return fmt.Errorf("%s holds %s ETH, needs %s: %w", owner, a.eth, amount, util.ErrInsufficientBalance)
			}
			a.eth = a.eth.Sub(amount)
			a.tokens = a.tokens.Add(out)
		case TokenToEth:
			if a.tokens.LessThan(amount) {
				return fmt.Errorf("%s holds %s mT, needs %s: %w", owner, a.tokens, amount, util.ErrInsufficientBalance)
			}
			a.tokens = a.tokens.Sub(amount)
			a.eth = a.eth.Add(out)
		}
		res = &ConversionResult{
			Owner:        owner,
			Direction:    direction,
			AmountIn:     amount,
			AmountOut:    out,
			TokenBalance: a.tokens,
			EthBalance:   a.eth,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	return res, nil
}

// Credit is one account's share of an interest distribution.
type Credit struct {
	Owner   string
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

// DistributionResult describes a global interest pass.
type DistributionResult struct {
	Rate    decimal.Decimal
	Total   decimal.Decimal
	Credits []Credit
}

// DistributeMonthlyInterest credits GlobalMonthlyRate of every token
// balance in one pass. No command or query observes a partial pass.
func (l *Ledger) DistributeMonthlyInterest() *DistributionResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := &DistributionResult{Rate: l.params.GlobalMonthlyRate, Total: decimal.Zero}
	for _, a := range l.sortedAccounts() {
		credit := domain.TruncateToken(a.tokens.Mul(l.params.GlobalMonthlyRate))
		if !credit.IsPositive() {
			continue
		}
		a.tokens = a.tokens.Add(credit)
		res.Total = res.Total.Add(credit)
		res.Credits = append(res.Credits, Credit{Owner: a.owner, Amount: credit, Balance: a.tokens})
	}
	return res
}

// sortedAccounts must be called with mu held exclusively.
func (l *Ledger) sortedAccounts() []*account {
	out := make([]*account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].owner < out[j].owner })
	return out
}

// Stats aggregates all accounts at one instant.
func (l *Ledger) Stats() domain.VaultStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := domain.VaultStats{TotalLocked: decimal.Zero, TotalTokens: decimal.Zero, TotalEth: decimal.Zero}
	for _, a := range l.accounts {
		if a.empty() {
			continue
		}
		stats.Accounts++
		stats.TotalTokens = stats.TotalTokens.Add(a.tokens)
		stats.TotalEth = stats.TotalEth.Add(a.eth)
		for _, fd := range a.deposits {
			if !fd.Withdrawn {
				stats.ActiveDeposits++
				stats.TotalLocked = stats.TotalLocked.Add(fd.Principal)
			}
		}
	}
	return stats
}

// Snapshot returns every non-empty account, ordered by owner.
func (l *Ledger) Snapshot() []domain.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.Account
	for _, a := range l.sortedAccounts() {
		if !a.empty() {
			out = append(out, a.view())
		}
	}
	return out
}

// Restore loads a snapshot into an empty ledger.
func (l *Ledger) Restore(accounts []domain.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, a := range l.accounts {
		if !a.empty() {
			return fmt.Errorf("restore: ledger already holds account %s", a.owner)
		}
	}

	restored := make(map[string]*account, len(accounts))
	for _, acct := range accounts {
		owner := domain.NormalizeOwner(acct.Owner)
		if _, dup := restored[owner]; dup {
			return fmt.Errorf("restore: duplicate account %s", owner)
		}
		if acct.TokenBalance.IsNegative() || acct.EthBalance.IsNegative() {
			return fmt.Errorf("restore: account %s has a negative balance: %w", owner, util.ErrInvalidAmount)
		}
		deposits := make([]domain.FixedDeposit, len(acct.Deposits))
		for i, fd := range acct.Deposits {
			if !fd.Principal.IsPositive() || fd.Months < 1 || fd.Months > domain.MaxTermMonths {
				return fmt.Errorf("restore: deposit %d of %s is malformed: %w", i, owner, util.ErrInvalidAmount)
			}
			fd.Owner = owner
			deposits[i] = fd
		}
		restored[owner] = &account{
			owner:    owner,
			tokens:   acct.TokenBalance,
			eth:      acct.EthBalance,
			deposits: deposits,
		}
	}

	l.accountsMu.Lock()
	l.accounts = restored
	l.accountsMu.Unlock()
	return nil
}
