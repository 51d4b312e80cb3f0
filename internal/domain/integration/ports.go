package integration

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SourceCatalog reads the supplier catalog
type SourceCatalog interface {
	// FetchAll returns every supplier product.
	// An undecodable feed yields an empty slice; session failures yield an error.
	FetchAll(ctx context.Context) ([]SupplierItem, error)

	// FetchDetail returns the supplementary record of a product, or false when
	// it could not be fetched
	FetchDetail(ctx context.Context, productID string) (*SupplierDetail, bool)
}

// SinkCatalog reads and updates the storefront catalog of a tenant
type SinkCatalog interface {
	// FetchAll returns every storefront variant of the tenant
	FetchAll(ctx context.Context, tenant string) ([]StorefrontVariant, error)

	// UpdateVariant sets price and available quantity as two independent writes
	UpdateVariant(ctx context.Context, tenant, variantID, inventoryItemID string, price decimal.Decimal, quantity int) UpdateResult
}

// CredentialStore persists storefront access tokens per tenant
type CredentialStore interface {
	// Get returns the token of the tenant, false when none is stored or it expired
	Get(ctx context.Context, tenant string) (string, bool, error)

	// Set stores the token. A zero ttl never expires.
	Set(ctx context.Context, tenant, token string, ttl time.Duration) error

	// Delete removes the token of the tenant
	Delete(ctx context.Context, tenant string) error

	// ListTenants returns every tenant with a live token
	ListTenants(ctx context.Context) ([]string, error)
}

// SettingsStore persists pricing settings per tenant
type SettingsStore interface {
	// Load returns the tenant settings, or the defaults when none are stored
	Load(ctx context.Context, tenant string) (PricingConfig, error)

	// Save stores the tenant settings
	Save(ctx context.Context, tenant string, cfg PricingConfig) error
}
