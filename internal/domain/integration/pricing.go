package integration

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PricingConfig holds the per-shop fee and margin settings used to derive sale prices.
// Percentages are expressed in percent (20 means 20%).
type PricingConfig struct {
	VATPercent          decimal.Decimal
	PayPalFeePercent    decimal.Decimal
	SecondaryFeeFlat    decimal.Decimal
	ProfitMarginPercent decimal.Decimal
}

// DefaultPricingConfig returns the settings used until a shop saves its own
func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		VATPercent:          decimal.NewFromInt(20),
		PayPalFeePercent:    decimal.NewFromInt(3),
		SecondaryFeeFlat:    decimal.RequireFromString("0.20"),
		ProfitMarginPercent: decimal.NewFromInt(30),
	}
}

// Validate checks that no component is negative
func (c PricingConfig) Validate() error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"vat_percent", c.VATPercent},
		{"paypal_fee_percent", c.PayPalFeePercent},
		{"secondary_fee_flat", c.SecondaryFeeFlat},
		{"profit_margin_percent", c.ProfitMarginPercent},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidPricing, f.name)
		}
	}
	return nil
}

// FinalPrice applies the config to a base price
func (c PricingConfig) FinalPrice(basePrice decimal.Decimal) decimal.NullDecimal {
	return ComputeFinalPrice(basePrice, c.VATPercent, c.PayPalFeePercent, c.SecondaryFeeFlat, c.ProfitMarginPercent)
}

// ComputeFinalPrice derives the sale price from a supplier base price:
//
//	final = base + base*vat/100 + base*fee/100 + flat + base*margin/100
//
// rounded half-up to 2 decimal places. A zero base price has nothing to derive
// from and yields an invalid NullDecimal.
func ComputeFinalPrice(basePrice, vatPct, paypalFeePct, secondaryFeeFlat, marginPct decimal.Decimal) decimal.NullDecimal {
	if basePrice.IsZero() {
		return decimal.NullDecimal{}
	}

	vat := basePrice.Mul(vatPct).Div(hundred)
	fee := basePrice.Mul(paypalFeePct).Div(hundred)
	margin := basePrice.Mul(marginPct).Div(hundred)

	final := basePrice.Add(vat).Add(fee).Add(secondaryFeeFlat).Add(margin)
	return decimal.NewNullDecimal(final.Round(2))
}
