package integration

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Catalog records
// ---------------------------------------------------------------------------

// SupplierItem is one product of the supplier catalog
type SupplierItem struct {
	SKU       string
	RawName   string
	BasePrice decimal.Decimal
	Quantity  int
	ProductID string
}

// SupplierDetail holds the supplementary fields of a supplier product.
// Nil pointers mean the supplier did not provide the field.
type SupplierDetail struct {
	ProductID string
	Brand     *string
	WeightKg  *decimal.Decimal
	Barcode   *string
}

// StorefrontVariant is a sellable variant on the storefront
type StorefrontVariant struct {
	SKU             string
	VariantID       string
	InventoryItemID string
	CurrentPrice    decimal.Decimal
	CurrentQuantity int
}

// NeedsUpdate reports whether the variant differs from the target price or quantity.
// Either field differing requires a full two-field update.
func (v StorefrontVariant) NeedsUpdate(price decimal.Decimal, quantity int) bool {
	return !v.CurrentPrice.Equal(price) || v.CurrentQuantity != quantity
}

// ---------------------------------------------------------------------------
// Tenant
// ---------------------------------------------------------------------------

var shopDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

// NormalizeShopDomain lowercases and validates a storefront shop domain.
// The domain is the tenant identifier for every sync component.
func NormalizeShopDomain(shop string) (string, error) {
	shop = strings.ToLower(strings.TrimSpace(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimSuffix(shop, "/")
	if !shopDomainPattern.MatchString(shop) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTenant, shop)
	}
	return shop, nil
}

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus represents the status of a sync run
type SyncStatus string

const (
	// SyncStatusRunning indicates the run has started and not finished
	SyncStatusRunning SyncStatus = "RUNNING"
	// SyncStatusSuccess indicates every triggered write succeeded
	SyncStatusSuccess SyncStatus = "SUCCESS"
	// SyncStatusPartial indicates at least one write failed
	SyncStatusPartial SyncStatus = "PARTIAL"
	// SyncStatusFailed indicates the run was aborted by a catalog-level failure
	SyncStatusFailed SyncStatus = "FAILED"
	// SyncStatusCancelled indicates the run was abandoned on shutdown
	SyncStatusCancelled SyncStatus = "CANCELLED"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusRunning, SyncStatusSuccess, SyncStatusPartial, SyncStatusFailed, SyncStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the run is over
func (s SyncStatus) IsTerminal() bool {
	return s != SyncStatusRunning
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// SyncOutcome
// ---------------------------------------------------------------------------

// SyncOutcome is the result of one reconciliation run for a shop
type SyncOutcome struct {
	RunID          uuid.UUID
	Tenant         string
	StartedAt      time.Time
	FinishedAt     time.Time
	ItemsMatched   int
	ItemsUpdated   int
	ItemsSkipped   int
	UpdateFailures int
	ReportLocation string
	Status         SyncStatus
	Error          string
}

// NewSyncOutcome creates a running outcome for the tenant
func NewSyncOutcome(tenant string, startedAt time.Time) *SyncOutcome {
	return &SyncOutcome{
		RunID:     uuid.New(),
		Tenant:    tenant,
		StartedAt: startedAt,
		Status:    SyncStatusRunning,
	}
}

// Complete marks the outcome as finished, deriving the status from the failure count
func (o *SyncOutcome) Complete(finishedAt time.Time) {
	o.FinishedAt = finishedAt
	if o.UpdateFailures > 0 {
		o.Status = SyncStatusPartial
		return
	}
	o.Status = SyncStatusSuccess
}

// Fail marks the outcome as aborted
func (o *SyncOutcome) Fail(finishedAt time.Time, err error) {
	o.FinishedAt = finishedAt
	o.Status = SyncStatusFailed
	if err != nil {
		o.Error = err.Error()
	}
}

// Cancel marks the outcome as abandoned
func (o *SyncOutcome) Cancel(finishedAt time.Time, err error) {
	o.Fail(finishedAt, err)
	o.Status = SyncStatusCancelled
}

// Duration returns how long the run took
func (o *SyncOutcome) Duration() time.Duration {
	if o.FinishedAt.IsZero() {
		return 0
	}
	return o.FinishedAt.Sub(o.StartedAt)
}

// ---------------------------------------------------------------------------
// UpdateResult
// ---------------------------------------------------------------------------

// UpdateResult reports both independent writes of a variant update
type UpdateResult struct {
	VariantID   string
	PriceErr    error
	QuantityErr error
}

// OK returns true if both writes succeeded
func (r UpdateResult) OK() bool {
	return r.PriceErr == nil && r.QuantityErr == nil
}

// Partial returns true if exactly one write failed
func (r UpdateResult) Partial() bool {
	return (r.PriceErr == nil) != (r.QuantityErr == nil)
}

// Failed returns true if both writes failed
func (r UpdateResult) Failed() bool {
	return r.PriceErr != nil && r.QuantityErr != nil
}

// FailureCount returns the number of failed writes
func (r UpdateResult) FailureCount() int {
	n := 0
	if r.PriceErr != nil {
		n++
	}
	if r.QuantityErr != nil {
		n++
	}
	return n
}
