// internal/domain/fixed_deposit.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Month is the synthetic 30-day month used for lock terms.
const Month = 30 * 24 * time.Hour

// MaxTermMonths bounds lock terms so that every maturity date stays a
// representable calendar date on the wire and in storage.
const MaxTermMonths = 90000

// MaturityAfter is the instant a term of months synthetic months started
// at start elapses.
func MaturityAfter(start time.Time, months int) time.Time {
	return start.AddDate(0, 0, 30*months)
}

// FixedDeposit is one locked deposit held by the ledger.
type FixedDeposit struct {
	Owner          string          `json:"owner"`
	Principal      decimal.Decimal `json:"principal"`
	StartTime      time.Time       `json:"start_time"`
	Months         int             `json:"months"`
	Withdrawn      bool            `json:"withdrawn"`
	Renewed        bool            `json:"renewed"`
}

// MaturityTime is the instant the lock period elapses.
func (fd FixedDeposit) MaturityTime() time.Time {
	return MaturityAfter(fd.StartTime, fd.Months)
}

// IsMatured reports whether the deposit can be withdrawn at the full rate.
func (fd FixedDeposit) IsMatured(now time.Time) bool {
	return !now.Before(fd.MaturityTime())
}

// TermMonths is the locked term expressed in synthetic months.
func (fd FixedDeposit) TermMonths() decimal.Decimal {
	return decimal.NewFromInt(int64(fd.Months))
}

// ElapsedMonths is the time since StartTime in (possibly fractional)
// synthetic months. It never goes below zero.
func (fd FixedDeposit) ElapsedMonths(now time.Time) decimal.Decimal {
	elapsed := now.Sub(fd.StartTime)
	if elapsed < 0 {
		elapsed = 0
	}
	return durationInMonths(elapsed)
}

// Status renders the lifecycle state in the audit log vocabulary.
func (fd FixedDeposit) Status() FixedDepositStatus {
	switch {
	case fd.Withdrawn:
		return FixedDepositStatusWithdrawn
	case fd.Renewed:
		return FixedDepositStatusRenewed
	default:
		return FixedDepositStatusActive
	}
}

func durationInMonths(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).DivRound(decimal.NewFromInt(int64(Month)), TokenDecimals)
}
