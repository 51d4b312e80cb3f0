// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain types to keep the domain layer free
// from ORM concerns.
//
// Structure:
// - base.go: shared timestamps and the model list used by AutoMigrate
// - shop_credential.go: storefront access tokens per shop
// - pricing_settings.go: pricing settings per shop
package models
