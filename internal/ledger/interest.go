package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fdvault/internal/domain"
)

// powPrecision is the working precision of fractional exponents; results
// are truncated to token precision afterwards.
const powPrecision = 24

var hundred = decimal.NewFromInt(100)

// CalculateInterest returns principal*((1+rate/100)^months) - principal,
// truncated to the token's smallest unit. months may be fractional.
func CalculateInterest(principal, monthlyRatePercent, months decimal.Decimal) (decimal.Decimal, error) {
	if !principal.IsPositive() || !months.IsPositive() || monthlyRatePercent.IsZero() {
		return decimal.Zero, nil
	}
	base := decimal.NewFromInt(1).Add(monthlyRatePercent.Div(hundred))
	if !base.IsPositive() {
		return decimal.Zero, fmt.Errorf("calculate interest: rate %s%% out of range", monthlyRatePercent)
	}
	factor, err := base.PowWithPrecision(months, powPrecision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("calculate interest: %w", err)
	}
	return domain.TruncateToken(principal.Mul(factor).Sub(principal)), nil
}
