package integration

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestComputeFinalPrice(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		vat      string
		fee      string
		flat     string
		margin   string
		expected string
	}{
		{"reference settings", "100", "20", "3", "0.20", "30", "153.20"},
		{"small base", "10", "20", "3", "0.20", "30", "15.50"},
		{"no fees", "42.5", "0", "0", "0", "0", "42.50"},
		{"rounds half up", "1.005", "0", "0", "0", "0", "1.01"},
		{"rounds down below half", "1.004", "0", "0", "0", "0", "1.00"},
		{"fractional percentages", "19.99", "23", "2.9", "0.35", "25", "30.51"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFinalPrice(d(tt.base), d(tt.vat), d(tt.fee), d(tt.flat), d(tt.margin))
			require.True(t, got.Valid)
			assert.Equal(t, tt.expected, got.Decimal.StringFixed(2))
		})
	}
}

func TestComputeFinalPrice_ZeroBaseIsAbsent(t *testing.T) {
	got := ComputeFinalPrice(decimal.Zero, d("20"), d("3"), d("0.20"), d("30"))
	assert.False(t, got.Valid)
}

func TestComputeFinalPrice_MonotonicInEachInput(t *testing.T) {
	faker := gofakeit.New(42)

	for i := 0; i < 200; i++ {
		base := decimal.NewFromFloat(faker.Float64Range(0.01, 500)).Round(2)
		vat := decimal.NewFromFloat(faker.Float64Range(0, 30)).Round(2)
		fee := decimal.NewFromFloat(faker.Float64Range(0, 10)).Round(2)
		flat := decimal.NewFromFloat(faker.Float64Range(0, 2)).Round(2)
		margin := decimal.NewFromFloat(faker.Float64Range(0, 80)).Round(2)
		step := d("5")

		baseline := ComputeFinalPrice(base, vat, fee, flat, margin).Decimal

		assert.True(t, ComputeFinalPrice(base, vat.Add(step), fee, flat, margin).Decimal.GreaterThanOrEqual(baseline), "vat")
		assert.True(t, ComputeFinalPrice(base, vat, fee.Add(step), flat, margin).Decimal.GreaterThanOrEqual(baseline), "fee")
		assert.True(t, ComputeFinalPrice(base, vat, fee, flat.Add(step), margin).Decimal.GreaterThan(baseline), "flat")
		assert.True(t, ComputeFinalPrice(base, vat, fee, flat, margin.Add(step)).Decimal.GreaterThanOrEqual(baseline), "margin")
	}
}

func TestPricingConfig_FinalPrice(t *testing.T) {
	cfg := DefaultPricingConfig()

	got := cfg.FinalPrice(d("100"))

	require.True(t, got.Valid)
	assert.True(t, got.Decimal.Equal(d("153.20")))
}

func TestPricingConfig_Validate(t *testing.T) {
	cfg := DefaultPricingConfig()
	assert.NoError(t, cfg.Validate())

	cfg.PayPalFeePercent = d("-1")
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalidPricing)
	assert.Contains(t, err.Error(), "paypal_fee_percent")
}
