package models

import (
	"time"
)

// ShopCredentialModel is the persistence model for a shop's storefront access token
type ShopCredentialModel struct {
	ShopModel
	AccessToken string     `gorm:"type:text;not null"`
	ExpiresAt   *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (ShopCredentialModel) TableName() string {
	return "shop_credentials"
}

// Live reports whether the token is usable at now
func (m *ShopCredentialModel) Live(now time.Time) bool {
	return m.ExpiresAt == nil || now.Before(*m.ExpiresAt)
}
