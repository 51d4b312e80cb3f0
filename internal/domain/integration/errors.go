package integration

import "errors"

var (
	// Platform errors
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")

	// Supplier session errors
	ErrSessionFailed     = errors.New("integration: supplier session failed")
	ErrDetailUnavailable = errors.New("integration: supplier detail unavailable")

	// Store errors
	ErrCredentialsNotFound = errors.New("integration: shop credentials not found")
	ErrInvalidTenant       = errors.New("integration: invalid shop domain")
	ErrInvalidPricing      = errors.New("integration: invalid pricing settings")

	// Report errors
	ErrReportNotFound  = errors.New("integration: report not found")
	ErrReportFinalized = errors.New("integration: report already finalized")
)
