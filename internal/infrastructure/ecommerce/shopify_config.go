package ecommerce

import (
	"errors"
	"time"
)

const (
	// ShopifyAPIVersion is the Admin REST API version the adapter speaks
	ShopifyAPIVersion = "2024-01"
	// ShopifyDefaultScopes are the OAuth scopes requested on install
	ShopifyDefaultScopes = "read_products,write_products,write_inventory"
	// ShopifyAccessTokenHeader carries the per-shop access token
	ShopifyAccessTokenHeader = "X-Shopify-Access-Token"
	// ShopifyCallLimitHeader reports bucket usage as "used/max"
	ShopifyCallLimitHeader = "X-Shopify-Shop-Api-Call-Limit"
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingClientID     = errors.New("shopify: client id is required")
	ErrShopifyConfigMissingClientSecret = errors.New("shopify: client secret is required")
)

// ShopifyConfig holds configuration for the Shopify Admin API integration
type ShopifyConfig struct {
	// APIVersion is the Admin API version path segment
	APIVersion string
	// BaseURL replaces https://{shop} when set. Used for tests and proxies.
	BaseURL string
	// ClientID and ClientSecret identify the app for OAuth
	ClientID     string
	ClientSecret string
	// Scopes requested on install
	Scopes string
	// RedirectURL is the OAuth callback URL registered for the app
	RedirectURL string
	// PageLimit is the number of products per catalog page
	PageLimit int
	// MinRequestInterval is the minimum delay between catalog requests of one shop
	MinRequestInterval time.Duration
	// QuotaThreshold is the used/max ratio above which QuotaCooldown is inserted
	QuotaThreshold float64
	QuotaCooldown  time.Duration
	// DefaultRetryAfter is used when a 429 carries no usable Retry-After
	DefaultRetryAfter time.Duration
	// MaxPageRetries bounds 429 retries of a single catalog page
	MaxPageRetries int
	// WritePolicy retries rate-limited variant and inventory writes
	WritePolicy BackoffPolicy
	// LocationID is the inventory location; zero resolves it from the shop
	LocationID int64
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// NewShopifyConfig creates a Shopify configuration with defaults
func NewShopifyConfig(clientID, clientSecret string) *ShopifyConfig {
	cfg := &ShopifyConfig{ClientID: clientID, ClientSecret: clientSecret}
	cfg.applyDefaults()
	return cfg
}

// Validate fills defaults. Client credentials are only checked by ValidateOAuth,
// the catalog operations work with stored tokens alone.
func (c *ShopifyConfig) Validate() error {
	c.applyDefaults()
	return nil
}

// ValidateOAuth checks the fields needed for install and token exchange
func (c *ShopifyConfig) ValidateOAuth() error {
	if c.ClientID == "" {
		return ErrShopifyConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrShopifyConfigMissingClientSecret
	}
	return nil
}

func (c *ShopifyConfig) applyDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = ShopifyAPIVersion
	}
	if c.Scopes == "" {
		c.Scopes = ShopifyDefaultScopes
	}
	if c.PageLimit <= 0 || c.PageLimit > 250 {
		c.PageLimit = 250
	}
	if c.MinRequestInterval == 0 {
		c.MinRequestInterval = 600 * time.Millisecond
	}
	if c.QuotaThreshold <= 0 {
		c.QuotaThreshold = 0.8
	}
	if c.QuotaCooldown <= 0 {
		c.QuotaCooldown = time.Second
	}
	if c.DefaultRetryAfter <= 0 {
		c.DefaultRetryAfter = 2 * time.Second
	}
	if c.MaxPageRetries <= 0 {
		c.MaxPageRetries = 5
	}
	if c.WritePolicy.MaxAttempts <= 0 {
		c.WritePolicy = StorefrontWritePolicy()
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
}
