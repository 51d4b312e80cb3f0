package models

import (
	"time"
)

// ShopModel provides common persistence fields for shop-keyed tables.
// The shop domain is the primary key; one row per shop.
type ShopModel struct {
	ShopDomain string    `gorm:"type:varchar(255);primaryKey"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// All returns every model managed by AutoMigrate
func All() []any {
	return []any{
		&ShopCredentialModel{},
		&PricingSettingsModel{},
	}
}
