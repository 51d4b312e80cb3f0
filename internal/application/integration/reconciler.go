package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shopsync/backend/internal/domain/catalog"
	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultUpdatePause is the pause after every triggered variant update
const DefaultUpdatePause = 600 * time.Millisecond

// RunRecorder records finished runs
type RunRecorder interface {
	ObserveRun(outcome *integration.SyncOutcome)
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithUpdatePause overrides the pause after each update
func WithUpdatePause(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		r.updatePause = d
	}
}

// WithRunRecorder records every finished run, typically into Prometheus
func WithRunRecorder(rec RunRecorder) ReconcilerOption {
	return func(r *Reconciler) {
		r.recorder = rec
	}
}

// WithSleep replaces the context-aware sleep used for update pauses
func WithSleep(f func(ctx context.Context, d time.Duration) error) ReconcilerOption {
	return func(r *Reconciler) {
		r.sleep = f
	}
}

// WithClock replaces the wall clock
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// Reconciler joins the supplier catalog against a shop's storefront variants,
// pushes price and stock changes and writes an audit report for every run.
type Reconciler struct {
	source   integration.SourceCatalog
	sink     integration.SinkCatalog
	settings integration.SettingsStore
	reports  integration.ReportWriter
	recorder RunRecorder
	logger   *zap.Logger

	updatePause time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// NewReconciler creates a Reconciler
func NewReconciler(
	source integration.SourceCatalog,
	sink integration.SinkCatalog,
	settings integration.SettingsStore,
	reports integration.ReportWriter,
	log *zap.Logger,
	opts ...ReconcilerOption,
) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reconciler{
		source:      source,
		sink:        sink,
		settings:    settings,
		reports:     reports,
		logger:      log,
		updatePause: DefaultUpdatePause,
		sleep:       sleepContext,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one reconciliation for the tenant.
// The returned outcome is never nil. The error is set when the run
// was aborted (FAILED) or cancelled (CANCELLED).
func (r *Reconciler) Run(ctx context.Context, tenant string) (*integration.SyncOutcome, error) {
	outcome := integration.NewSyncOutcome(tenant, r.now())

	ctx, span := telemetry.StartSpan(ctx, "reconciler.run",
		telemetry.WithAttribute(telemetry.SpanAttrShop, tenant),
		telemetry.WithAttribute(telemetry.SpanAttrRunID, outcome.RunID.String()),
	)
	defer span.End()

	ctx, log := logger.ForRun(ctx, logger.WithTraceContext(ctx, r.logger), tenant, outcome.RunID.String())

	err := r.reconcile(ctx, log, outcome)
	finishedAt := r.now()
	switch {
	case err == nil:
		outcome.Complete(finishedAt)
		telemetry.SetOK(span)
	case shutdown(ctx):
		outcome.Cancel(finishedAt, err)
		telemetry.RecordError(span, err)
	default:
		outcome.Fail(finishedAt, err)
		telemetry.RecordError(span, err)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrStatus, outcome.Status.String(),
		telemetry.SpanAttrItemsMatched, outcome.ItemsMatched,
		telemetry.SpanAttrItemsUpdated, outcome.ItemsUpdated,
		telemetry.SpanAttrItemsSkipped, outcome.ItemsSkipped,
		telemetry.SpanAttrUpdateFailures, outcome.UpdateFailures,
	)

	fields := []zap.Field{
		zap.String("status", outcome.Status.String()),
		zap.Int("items_matched", outcome.ItemsMatched),
		zap.Int("items_updated", outcome.ItemsUpdated),
		zap.Int("items_skipped", outcome.ItemsSkipped),
		zap.Int("update_failures", outcome.UpdateFailures),
		zap.String("report", outcome.ReportLocation),
		zap.Duration("duration", outcome.Duration()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		log.Error("Catalog sync finished", fields...)
	} else {
		log.Info("Catalog sync finished", fields...)
	}

	if r.recorder != nil {
		r.recorder.ObserveRun(outcome)
	}
	return outcome, err
}

func (r *Reconciler) reconcile(ctx context.Context, log *zap.Logger, outcome *integration.SyncOutcome) error {
	report, err := r.reports.Create(ctx, outcome.Tenant, outcome.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	err = r.reconcileInto(ctx, log, outcome, report)
	if err != nil && shutdown(ctx) {
		if derr := report.Discard(); derr != nil {
			log.Warn("Failed to discard report", zap.Error(derr))
		}
		return err
	}

	location, ferr := report.Finalize()
	if ferr != nil {
		return errors.Join(err, fmt.Errorf("failed to finalize report: %w", ferr))
	}
	outcome.ReportLocation = location
	return err
}

func (r *Reconciler) reconcileInto(
	ctx context.Context,
	log *zap.Logger,
	outcome *integration.SyncOutcome,
	report integration.Report,
) error {
	pricing, err := r.settings.Load(ctx, outcome.Tenant)
	if err != nil {
		return fmt.Errorf("failed to load pricing settings: %w", err)
	}

	var (
		items    []integration.SupplierItem
		variants []integration.StorefrontVariant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = r.source.FetchAll(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch supplier catalog: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		variants, err = r.sink.FetchAll(gctx, outcome.Tenant)
		if err != nil {
			return fmt.Errorf("failed to fetch storefront catalog: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	index := integration.NewVariantIndex(variants)
	for sku, displaced := range index.Duplicates {
		log.Warn("Duplicate sku on storefront, keeping last variant",
			zap.String("sku", sku),
			zap.Int("displaced", len(displaced)),
		)
	}
	telemetry.SetAttributes(trace.SpanFromContext(ctx),
		telemetry.SpanAttrSupplierItems, len(items),
		telemetry.SpanAttrStoreVariants, index.Len(),
	)
	log.Info("Catalogs fetched",
		zap.Int("supplier_items", len(items)),
		zap.Int("storefront_variants", index.Len()),
	)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		variant, ok := index.Lookup(item.SKU)
		if !ok {
			continue
		}
		if item.ProductID == "" {
			log.Debug("Supplier item has no product id, skipped", zap.String("sku", item.SKU))
			outcome.ItemsSkipped++
			continue
		}
		outcome.ItemsMatched++

		detail, ok := r.source.FetchDetail(ctx, item.ProductID)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Warn("Supplier detail unavailable, item skipped",
				zap.String("sku", item.SKU),
				zap.String("product_id", item.ProductID),
			)
			outcome.ItemsSkipped++
			continue
		}

		flavor, itemName := catalog.ExtractFlavor(item.RawName)
		computed := pricing.FinalPrice(item.BasePrice)

		row := integration.NewReconciliationRow(item, detail, flavor, itemName, computed)
		if err := report.AppendRow(row); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}

		if !computed.Valid {
			log.Debug("No computed price, update skipped", zap.String("sku", item.SKU))
			continue
		}
		if !variant.NeedsUpdate(computed.Decimal, item.Quantity) {
			continue
		}

		if err := r.update(ctx, log, outcome, variant, computed.Decimal, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) update(
	ctx context.Context,
	log *zap.Logger,
	outcome *integration.SyncOutcome,
	variant integration.StorefrontVariant,
	price decimal.Decimal,
	quantity int,
) error {
	result := r.sink.UpdateVariant(ctx, outcome.Tenant, variant.VariantID, variant.InventoryItemID, price, quantity)
	if result.OK() {
		outcome.ItemsUpdated++
		telemetry.AddEvent(trace.SpanFromContext(ctx), "variant_updated",
			telemetry.SpanAttrSKU, variant.SKU,
		)
	} else {
		outcome.UpdateFailures++
		log.Warn("Variant update failed",
			zap.String("sku", variant.SKU),
			zap.String("variant_id", variant.VariantID),
			zap.NamedError("price_error", result.PriceErr),
			zap.NamedError("quantity_error", result.QuantityErr),
		)
	}
	return r.sleep(ctx, r.updatePause)
}

// shutdown reports whether the run was abandoned by its caller. A run that
// ran out of time keeps its partial report.
func shutdown(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
