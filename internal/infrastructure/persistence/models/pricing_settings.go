package models

import (
	"github.com/shopspring/decimal"

	"github.com/shopsync/backend/internal/domain/integration"
)

// PricingSettingsModel is the persistence model for a shop's pricing settings
type PricingSettingsModel struct {
	ShopModel
	VATPercent          decimal.Decimal `gorm:"column:vat_percent;type:decimal(10,4);not null"`
	PayPalFeePercent    decimal.Decimal `gorm:"column:paypal_fee_percent;type:decimal(10,4);not null"`
	SecondaryFeeFlat    decimal.Decimal `gorm:"column:secondary_fee_flat;type:decimal(10,4);not null"`
	ProfitMarginPercent decimal.Decimal `gorm:"column:profit_margin_percent;type:decimal(10,4);not null"`
}

// TableName returns the table name for GORM
func (PricingSettingsModel) TableName() string {
	return "pricing_settings"
}

// ToDomain converts the persistence model to the domain config
func (m *PricingSettingsModel) ToDomain() integration.PricingConfig {
	return integration.PricingConfig{
		VATPercent:          m.VATPercent,
		PayPalFeePercent:    m.PayPalFeePercent,
		SecondaryFeeFlat:    m.SecondaryFeeFlat,
		ProfitMarginPercent: m.ProfitMarginPercent,
	}
}

// FromDomain populates the model from the domain config
func (m *PricingSettingsModel) FromDomain(shop string, cfg integration.PricingConfig) {
	m.ShopDomain = shop
	m.VATPercent = cfg.VATPercent
	m.PayPalFeePercent = cfg.PayPalFeePercent
	m.SecondaryFeeFlat = cfg.SecondaryFeeFlat
	m.ProfitMarginPercent = cfg.ProfitMarginPercent
}
