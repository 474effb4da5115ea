// internal/domain/amount.go
package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"fdvault/internal/util"
)

// TokenDecimals is the number of implied fractional digits of mT and ETH
// amounts on the wire.
const TokenDecimals = 18

// DisplayDecimals is the precision used when rendering amounts for people.
const DisplayDecimals = 2

// ParseWei parses an integer string of smallest units into a decimal amount.
func ParseWei(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("parse wei %q: not an integer: %w", s, util.ErrInvalidAmount)
	}
	if v.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("parse wei %q: negative amount: %w", s, util.ErrInvalidAmount)
	}
	return decimal.NewFromBigInt(v, -TokenDecimals), nil
}

// ToWei renders d as an integer string of smallest units. Digits beyond
// the token precision are truncated.
func ToWei(d decimal.Decimal) string {
	return d.Shift(TokenDecimals).Truncate(0).BigInt().String()
}

// ParseUnits parses a human readable decimal string ("1.5") and truncates
// it to token precision.
func ParseUnits(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse units %q: %v: %w", s, err, util.ErrInvalidAmount)
	}
	return TruncateToken(d), nil
}

// TruncateToken drops digits below the token's smallest unit.
func TruncateToken(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(TokenDecimals)
}

// FormatDisplay renders d with two fractional digits, truncating.
func FormatDisplay(d decimal.Decimal) string {
	return d.Truncate(DisplayDecimals).StringFixed(DisplayDecimals)
}
