package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Params are the vault's economic constants.
type Params struct {
	// MonthlyRatePercent is the compound FD rate paid at maturity, in percent per month.
	MonthlyRatePercent decimal.Decimal
	// EarlyRateFactor scales MonthlyRatePercent on early withdrawal.
	EarlyRateFactor decimal.Decimal
	// GlobalMonthlyRate is the fraction credited to every token balance by
	// DistributeMonthlyInterest.
	GlobalMonthlyRate decimal.Decimal
	// EthToTokenRate is the number of mT minted per ETH.
	EthToTokenRate decimal.Decimal
}

// DefaultParams mirror the deployed vault contract.
func DefaultParams() Params {
	return Params{
		MonthlyRatePercent: decimal.NewFromInt(1),
		EarlyRateFactor:    decimal.RequireFromString("0.75"),
		GlobalMonthlyRate:  decimal.RequireFromString("0.005"),
		EthToTokenRate:     decimal.NewFromInt(200000),
	}
}

// EarlyRatePercent is the penalised monthly rate.
func (p Params) EarlyRatePercent() decimal.Decimal {
	return p.MonthlyRatePercent.Mul(p.EarlyRateFactor)
}

// Validate rejects parameter sets the ledger cannot operate with.
func (p Params) Validate() error {
	switch {
	case p.MonthlyRatePercent.IsNegative():
		return fmt.Errorf("monthly rate must not be negative, got %s", p.MonthlyRatePercent)
	case p.EarlyRateFactor.IsNegative() || p.EarlyRateFactor.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("early rate factor must be within [0, 1], got %s", p.EarlyRateFactor)
	case p.GlobalMonthlyRate.IsNegative():
		return fmt.Errorf("global monthly rate must not be negative, got %s", p.GlobalMonthlyRate)
	case !p.EthToTokenRate.IsPositive():
		return fmt.Errorf("eth to token rate must be positive, got %s", p.EthToTokenRate)
	}
	return nil
}
