package integration

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationRow is one audited line of a sync report. Every matched item
// that reached pricing gets a row, whether or not it was updated.
type ReconciliationRow struct {
	SKU           string
	Brand         *string
	ItemName      string
	Flavor        *string
	WeightGrams   decimal.NullDecimal
	Barcode       *string
	SourcePrice   decimal.Decimal
	ComputedPrice decimal.NullDecimal
	Quantity      int
}

// NewReconciliationRow assembles a row from the joined records and the parsed name
func NewReconciliationRow(item SupplierItem, detail *SupplierDetail, flavor *string, itemName string, computed decimal.NullDecimal) ReconciliationRow {
	row := ReconciliationRow{
		SKU:           item.SKU,
		ItemName:      itemName,
		Flavor:        flavor,
		SourcePrice:   item.BasePrice,
		ComputedPrice: computed,
		Quantity:      item.Quantity,
	}
	if detail != nil {
		row.Brand = detail.Brand
		row.Barcode = detail.Barcode
		if detail.WeightKg != nil {
			row.WeightGrams = decimal.NewNullDecimal(detail.WeightKg.Mul(decimal.NewFromInt(1000)))
		}
	}
	return row
}

// Report is an open report artifact. Rows are visible to readers only after Finalize.
type Report interface {
	// AppendRow writes one row
	AppendRow(row ReconciliationRow) error
	// Finalize publishes the report and returns its location
	Finalize() (string, error)
	// Discard removes the unpublished artifact
	Discard() error
}

// ReportWriter creates report artifacts and locates finalized ones
type ReportWriter interface {
	// Create opens a new report for a run of the tenant
	Create(ctx context.Context, tenant string, startedAt time.Time) (Report, error)
	// Latest returns the location of the newest finalized report.
	// An empty tenant searches across all tenants.
	Latest(ctx context.Context, tenant string) (string, error)
}
