package ecommerce

import (
	"errors"
	"time"
)

const (
	// PowerBodyProductListMethod returns the whole dropshipping catalog
	PowerBodyProductListMethod = "dropshipping.getProductList"
	// PowerBodyProductInfoMethod returns the detail record of one product
	PowerBodyProductInfoMethod = "dropshipping.getProductInfo"
)

// Errors for PowerBody configuration
var (
	ErrPowerBodyConfigMissingEndpoint = errors.New("powerbody: endpoint is required")
	ErrPowerBodyConfigMissingUsername = errors.New("powerbody: username is required")
	ErrPowerBodyConfigMissingPassword = errors.New("powerbody: password is required")
)

// PowerBodyConfig holds configuration for the PowerBody dropshipping API
type PowerBodyConfig struct {
	// Endpoint is the SOAP endpoint URL
	Endpoint string
	// Username and Password authenticate the session
	Username string
	Password string
	// TimeoutSeconds is the per-request timeout
	TimeoutSeconds int
	// ProductListMethod and ProductInfoMethod name the remote resources
	ProductListMethod string
	ProductInfoMethod string
	// DetailPolicy retries forbidden and unavailable detail lookups
	DetailPolicy BackoffPolicy
	// SessionCloseTimeout bounds the session teardown call
	SessionCloseTimeout time.Duration
}

// Validate validates the configuration and fills defaults
func (c *PowerBodyConfig) Validate() error {
	if c.Endpoint == "" {
		return ErrPowerBodyConfigMissingEndpoint
	}
	if c.Username == "" {
		return ErrPowerBodyConfigMissingUsername
	}
	if c.Password == "" {
		return ErrPowerBodyConfigMissingPassword
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 60
	}
	if c.ProductListMethod == "" {
		c.ProductListMethod = PowerBodyProductListMethod
	}
	if c.ProductInfoMethod == "" {
		c.ProductInfoMethod = PowerBodyProductInfoMethod
	}
	if c.DetailPolicy.MaxAttempts <= 0 {
		c.DetailPolicy = SupplierDetailPolicy()
	}
	if c.SessionCloseTimeout <= 0 {
		c.SessionCloseTimeout = 10 * time.Second
	}
	return nil
}
