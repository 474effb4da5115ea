package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdvault/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateInterest(t *testing.T) {
	t.Run("TwelveMonthsAtOnePercent", func(t *testing.T) {
		interest, err := CalculateInterest(dec("1000"), dec("1"), dec("12"))
		require.NoError(t, err)
		// 1000 * 1.01^12 - 1000 = 126.825030131969720661201
		assert.Equal(t, "126.825030131969720661", interest.String())
		assert.Equal(t, "126.82", domain.FormatDisplay(interest))
	})

	t.Run("SixMonthsAtOnePercent", func(t *testing.T) {
		interest, err := CalculateInterest(dec("1000"), dec("1"), dec("6"))
		require.NoError(t, err)
		assert.True(t, dec("61.520150601").Equal(interest), "got %s", interest)
	})

	t.Run("FractionalMonths", func(t *testing.T) {
		interest, err := CalculateInterest(dec("1000"), dec("1"), dec("0.5"))
		require.NoError(t, err)
		// sqrt(1.01) = 1.004987562112089...
		assert.True(t, interest.GreaterThan(dec("4.98756211")), "got %s", interest)
		assert.True(t, interest.LessThan(dec("4.98756212")), "got %s", interest)
	})

	t.Run("ZeroInputs", func(t *testing.T) {
		for _, tc := range [][3]string{{"0", "1", "12"}, {"1000", "0", "12"}, {"1000", "1", "0"}, {"1000", "1", "-1"}} {
			interest, err := CalculateInterest(dec(tc[0]), dec(tc[1]), dec(tc[2]))
			require.NoError(t, err)
			assert.True(t, interest.IsZero(), "inputs %v", tc)
		}
	})

	t.Run("RateOutOfRange", func(t *testing.T) {
		_, err := CalculateInterest(dec("1000"), dec("-100"), dec("1.5"))
		assert.Error(t, err)
	})

	t.Run("EarlyRateNeverExceedsFullRate", func(t *testing.T) {
		params := DefaultParams()
		for _, months := range []string{"0.25", "1", "3", "6.5", "12"} {
			full, err := CalculateInterest(dec("2500"), params.MonthlyRatePercent, dec(months))
			require.NoError(t, err)
			early, err := CalculateInterest(dec("2500"), params.EarlyRatePercent(), dec(months))
			require.NoError(t, err)
			assert.True(t, early.LessThan(full), "months %s: early %s full %s", months, early, full)
		}
	})
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.EarlyRateFactor = dec("1.5")
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.EthToTokenRate = decimal.Zero
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.MonthlyRatePercent = dec("-1")
	assert.Error(t, p.Validate())

	_, err := New(p)
	assert.Error(t, err)
}
