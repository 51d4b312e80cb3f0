package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/logger"
)

// PowerBodyAdapter reads the supplier catalog from the PowerBody dropshipping API
type PowerBodyAdapter struct {
	config   *PowerBodyConfig
	rpc      SupplierRPC
	logger   *zap.Logger
	newTimer func() backoff.Timer
}

// PowerBodyOption configures a PowerBodyAdapter
type PowerBodyOption func(*PowerBodyAdapter)

// WithPowerBodyTimer replaces the wall-clock timer used between detail retries
func WithPowerBodyTimer(f func() backoff.Timer) PowerBodyOption {
	return func(a *PowerBodyAdapter) {
		a.newTimer = f
	}
}

// NewPowerBodyAdapter creates an adapter that talks to the supplier through rpc
func NewPowerBodyAdapter(config *PowerBodyConfig, rpc SupplierRPC, logger *zap.Logger, opts ...PowerBodyOption) (*PowerBodyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &PowerBodyAdapter{
		config:   config,
		rpc:      rpc,
		logger:   logger,
		newTimer: NewTimer,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// withSession runs fn inside a supplier session that is closed on every exit path
func (a *PowerBodyAdapter) withSession(ctx context.Context, fn func(session string) error) error {
	session, err := a.rpc.Login(ctx, a.config.Username, a.config.Password)
	if err != nil {
		return fmt.Errorf("%w: login: %w", integration.ErrSessionFailed, err)
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.SessionCloseTimeout)
		defer cancel()
		if err := a.rpc.EndSession(closeCtx, session); err != nil {
			logger.Scoped(ctx, a.logger).Warn("Failed to end supplier session", zap.Error(err))
		}
	}()

	return fn(session)
}

// FetchAll returns the full supplier catalog. An undecodable or non-list feed
// yields an empty catalog; session and transport failures are returned.
func (a *PowerBodyAdapter) FetchAll(ctx context.Context) ([]integration.SupplierItem, error) {
	var raw string
	err := a.withSession(ctx, func(session string) error {
		var callErr error
		raw, callErr = a.rpc.Call(ctx, session, a.config.ProductListMethod)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("powerbody: fetch product list: %w", err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(unwrapJSON(raw), &entries); err != nil {
		logger.Scoped(ctx, a.logger).Error("Supplier product list is not a JSON list", zap.Error(err), zap.Int("bytes", len(raw)))
		return []integration.SupplierItem{}, nil
	}

	items := make([]integration.SupplierItem, 0, len(entries))
	skipped := 0
	for i, entry := range entries {
		item, err := decodeSupplierItem(entry)
		if err != nil {
			skipped++
			logger.Scoped(ctx, a.logger).Debug("Skipping malformed supplier product", zap.Int("index", i), zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	logger.Scoped(ctx, a.logger).Info("Fetched supplier catalog",
		zap.Int("products", len(items)),
		zap.Int("skipped", skipped),
	)
	return items, nil
}

func decodeSupplierItem(entry json.RawMessage) (integration.SupplierItem, error) {
	var p powerBodyProduct
	if err := json.Unmarshal(entry, &p); err != nil {
		return integration.SupplierItem{}, err
	}

	priceText := p.RetailPrice.String()
	if priceText == "" {
		priceText = p.Price.String()
	}
	if priceText == "" {
		priceText = "0.00"
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return integration.SupplierItem{}, fmt.Errorf("invalid price %q: %w", priceText, err)
	}

	qty := 0
	if q := p.Qty.String(); q != "" {
		parsed, err := decimal.NewFromString(q)
		if err != nil {
			return integration.SupplierItem{}, fmt.Errorf("invalid qty %q: %w", q, err)
		}
		qty = int(parsed.IntPart())
	}

	productID := p.ProductID.String()
	if productID == "" {
		productID = p.ID.String()
	}

	return integration.SupplierItem{
		SKU:       p.SKU.String(),
		RawName:   p.Name.String(),
		BasePrice: price,
		Quantity:  qty,
		ProductID: productID,
	}, nil
}

// FetchDetail returns brand, weight and barcode of a product. Each attempt uses a
// fresh session. Forbidden and unavailable answers are retried under the detail
// policy; any failure left after that is logged and reported as false.
func (a *PowerBodyAdapter) FetchDetail(ctx context.Context, productID string) (*integration.SupplierDetail, bool) {
	var detail *integration.SupplierDetail

	op := func(attempt int) error {
		d, err := a.fetchDetailOnce(ctx, productID)
		if err != nil {
			if isTransientSupplierError(err) {
				return Retryable(err)
			}
			return err
		}
		detail = d
		return nil
	}
	notify := func(err error, delay time.Duration) {
		logger.Scoped(ctx, a.logger).Warn("Supplier detail lookup refused, retrying",
			zap.String("product_id", productID),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	if err := Retry(ctx, a.config.DetailPolicy, a.newTimer(), op, notify); err != nil {
		logger.Scoped(ctx, a.logger).Warn("Supplier detail unavailable",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return nil, false
	}
	return detail, true
}

func (a *PowerBodyAdapter) fetchDetailOnce(ctx context.Context, productID string) (*integration.SupplierDetail, error) {
	var raw string
	err := a.withSession(ctx, func(session string) error {
		var callErr error
		raw, callErr = a.rpc.Call(ctx, session, a.config.ProductInfoMethod, productID)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	data := unwrapJSON(raw)
	if len(data) > 0 && data[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil || len(list) == 0 {
			return nil, fmt.Errorf("%w: empty detail list", integration.ErrDetailUnavailable)
		}
		data = list[0]
	}

	var d powerBodyDetail
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformInvalidResponse, err)
	}

	detail := &integration.SupplierDetail{ProductID: productID}
	if brand := firstNonEmpty(d.Brand.String(), d.Manufacturer.String()); brand != "" {
		detail.Brand = &brand
	}
	if barcode := firstNonEmpty(d.EAN.String(), d.Barcode.String()); barcode != "" {
		detail.Barcode = &barcode
	}
	if w := d.Weight.String(); w != "" {
		if weight, err := decimal.NewFromString(w); err == nil {
			detail.WeightKg = &weight
		} else {
			logger.Scoped(ctx, a.logger).Debug("Ignoring unparsable supplier weight", zap.String("product_id", productID), zap.String("weight", w))
		}
	}
	return detail, nil
}

// isTransientSupplierError reports forbidden and unavailable answers, at login or call time
func isTransientSupplierError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	soapErr, ok := asSOAPError(err)
	if !ok {
		return false
	}
	return soapErr.IsForbidden() || soapErr.IsUnavailable()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ integration.SourceCatalog = (*PowerBodyAdapter)(nil)
