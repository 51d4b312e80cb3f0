package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Sync DTOs
// ---------------------------------------------------------------------------

// SyncOutcomeResponse represents a finished sync run in API responses
type SyncOutcomeResponse struct {
	RunID           uuid.UUID              `json:"run_id"`
	Shop            string                 `json:"shop"`
	Status          integration.SyncStatus `json:"status"`
	StartedAt       time.Time              `json:"started_at"`
	FinishedAt      time.Time              `json:"finished_at"`
	DurationSeconds float64                `json:"duration_seconds"`
	ItemsMatched    int                    `json:"items_matched"`
	ItemsUpdated    int                    `json:"items_updated"`
	ItemsSkipped    int                    `json:"items_skipped"`
	UpdateFailures  int                    `json:"update_failures"`
	ReportLocation  string                 `json:"report_location,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// ToSyncOutcomeResponse converts a domain outcome
func ToSyncOutcomeResponse(o *integration.SyncOutcome) SyncOutcomeResponse {
	return SyncOutcomeResponse{
		RunID:           o.RunID,
		Shop:            o.Tenant,
		Status:          o.Status,
		StartedAt:       o.StartedAt,
		FinishedAt:      o.FinishedAt,
		DurationSeconds: o.Duration().Seconds(),
		ItemsMatched:    o.ItemsMatched,
		ItemsUpdated:    o.ItemsUpdated,
		ItemsSkipped:    o.ItemsSkipped,
		UpdateFailures:  o.UpdateFailures,
		ReportLocation:  o.ReportLocation,
		Error:           o.Error,
	}
}

// ToSyncOutcomeResponses converts a list of outcomes, preserving order
func ToSyncOutcomeResponses(outcomes []*integration.SyncOutcome) []SyncOutcomeResponse {
	result := make([]SyncOutcomeResponse, 0, len(outcomes))
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		result = append(result, ToSyncOutcomeResponse(o))
	}
	return result
}

// ShopStatusResponse describes the sync registration of a shop
type ShopStatusResponse struct {
	Shop        string                `json:"shop"`
	Installed   bool                  `json:"installed"`
	Scheduled   bool                  `json:"scheduled"`
	InProgress  bool                  `json:"in_progress"`
	LastRuns    []SyncOutcomeResponse `json:"last_runs"`
	LastSuccess *time.Time            `json:"last_success,omitempty"`
}

// LastSuccessAt returns the finish time of the newest successful or partial run.
// Outcomes are expected newest first.
func LastSuccessAt(outcomes []*integration.SyncOutcome) *time.Time {
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if o.Status == integration.SyncStatusSuccess || o.Status == integration.SyncStatusPartial {
			t := o.FinishedAt
			return &t
		}
	}
	return nil
}

// SyncTriggerResponse is returned when a manual sync is queued
type SyncTriggerResponse struct {
	Shop   string `json:"shop"`
	Queued bool   `json:"queued"`
}

// ---------------------------------------------------------------------------
// Pricing settings DTOs
// ---------------------------------------------------------------------------

// PricingSettingsRequest updates the pricing settings of a shop.
// Fields omitted from the body keep their current values.
type PricingSettingsRequest struct {
	VATPercent          decimal.Decimal `json:"vat_percent" binding:"gte=0"`
	PayPalFeePercent    decimal.Decimal `json:"paypal_fee_percent" binding:"gte=0"`
	SecondaryFeeFlat    decimal.Decimal `json:"secondary_fee_flat" binding:"gte=0"`
	ProfitMarginPercent decimal.Decimal `json:"profit_margin_percent" binding:"gte=0,lt=1000"`
}

// NewPricingSettingsRequest seeds a request with the current settings
func NewPricingSettingsRequest(cfg integration.PricingConfig) PricingSettingsRequest {
	return PricingSettingsRequest{
		VATPercent:          cfg.VATPercent,
		PayPalFeePercent:    cfg.PayPalFeePercent,
		SecondaryFeeFlat:    cfg.SecondaryFeeFlat,
		ProfitMarginPercent: cfg.ProfitMarginPercent,
	}
}

// ToPricingConfig converts the request to domain settings
func (r PricingSettingsRequest) ToPricingConfig() integration.PricingConfig {
	return integration.PricingConfig{
		VATPercent:          r.VATPercent,
		PayPalFeePercent:    r.PayPalFeePercent,
		SecondaryFeeFlat:    r.SecondaryFeeFlat,
		ProfitMarginPercent: r.ProfitMarginPercent,
	}
}

// PricingSettingsResponse represents the pricing settings of a shop
type PricingSettingsResponse struct {
	Shop                string          `json:"shop"`
	VATPercent          decimal.Decimal `json:"vat_percent"`
	PayPalFeePercent    decimal.Decimal `json:"paypal_fee_percent"`
	SecondaryFeeFlat    decimal.Decimal `json:"secondary_fee_flat"`
	ProfitMarginPercent decimal.Decimal `json:"profit_margin_percent"`
}

// ToPricingSettingsResponse converts domain settings
func ToPricingSettingsResponse(shop string, cfg integration.PricingConfig) PricingSettingsResponse {
	return PricingSettingsResponse{
		Shop:                shop,
		VATPercent:          cfg.VATPercent,
		PayPalFeePercent:    cfg.PayPalFeePercent,
		SecondaryFeeFlat:    cfg.SecondaryFeeFlat,
		ProfitMarginPercent: cfg.ProfitMarginPercent,
	}
}
