package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testShop = "demo.myshopify.com"

// MockSourceCatalog is a mock implementation of SourceCatalog
type MockSourceCatalog struct {
	mock.Mock
}

func (m *MockSourceCatalog) FetchAll(ctx context.Context) ([]integration.SupplierItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SupplierItem), args.Error(1)
}

func (m *MockSourceCatalog) FetchDetail(ctx context.Context, productID string) (*integration.SupplierDetail, bool) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*integration.SupplierDetail), args.Bool(1)
}

// MockSinkCatalog is a mock implementation of SinkCatalog
type MockSinkCatalog struct {
	mock.Mock
}

func (m *MockSinkCatalog) FetchAll(ctx context.Context, tenant string) ([]integration.StorefrontVariant, error) {
	args := m.Called(ctx, tenant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.StorefrontVariant), args.Error(1)
}

func (m *MockSinkCatalog) UpdateVariant(ctx context.Context, tenant, variantID, inventoryItemID string, price decimal.Decimal, quantity int) integration.UpdateResult {
	args := m.Called(ctx, tenant, variantID, inventoryItemID, price, quantity)
	return args.Get(0).(integration.UpdateResult)
}

// MockSettingsStore is a mock implementation of SettingsStore
type MockSettingsStore struct {
	mock.Mock
}

func (m *MockSettingsStore) Load(ctx context.Context, tenant string) (integration.PricingConfig, error) {
	args := m.Called(ctx, tenant)
	return args.Get(0).(integration.PricingConfig), args.Error(1)
}

func (m *MockSettingsStore) Save(ctx context.Context, tenant string, cfg integration.PricingConfig) error {
	args := m.Called(ctx, tenant, cfg)
	return args.Error(0)
}

// memoryReport collects rows in memory
type memoryReport struct {
	mu        sync.Mutex
	rows      []integration.ReconciliationRow
	finalized bool
	discarded bool
	appendErr error
}

func (r *memoryReport) AppendRow(row integration.ReconciliationRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.rows = append(r.rows, row)
	return nil
}

func (r *memoryReport) Finalize() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = true
	return "/reports/sync_report_test.csv", nil
}

func (r *memoryReport) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discarded = true
	return nil
}

type memoryReportWriter struct {
	report *memoryReport
	err    error
}

func (w *memoryReportWriter) Create(ctx context.Context, tenant string, startedAt time.Time) (integration.Report, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.report, nil
}

func (w *memoryReportWriter) Latest(ctx context.Context, tenant string) (string, error) {
	return "", integration.ErrReportNotFound
}

type recordedRuns struct {
	outcomes []*integration.SyncOutcome
}

func (r *recordedRuns) ObserveRun(outcome *integration.SyncOutcome) {
	r.outcomes = append(r.outcomes, outcome)
}

type reconcilerFixture struct {
	source   *MockSourceCatalog
	sink     *MockSinkCatalog
	settings *MockSettingsStore
	report   *memoryReport
	writer   *memoryReportWriter
	runs     *recordedRuns
	sleeps   []time.Duration
	logs     *observer.ObservedLogs
}

func newReconcilerFixture(t *testing.T) (*reconcilerFixture, *Reconciler) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	f := &reconcilerFixture{
		source:   new(MockSourceCatalog),
		sink:     new(MockSinkCatalog),
		settings: new(MockSettingsStore),
		report:   &memoryReport{},
		runs:     &recordedRuns{},
		logs:     logs,
	}
	f.writer = &memoryReportWriter{report: f.report}
	r := NewReconciler(f.source, f.sink, f.settings, f.writer, zap.New(core),
		WithRunRecorder(f.runs),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return ctx.Err()
		}),
	)
	return f, r
}

func testPricing() integration.PricingConfig {
	return integration.PricingConfig{
		VATPercent:          decimal.NewFromInt(20),
		PayPalFeePercent:    decimal.NewFromInt(3),
		SecondaryFeeFlat:    decimal.RequireFromString("0.20"),
		ProfitMarginPercent: decimal.NewFromInt(30),
	}
}

func strPtr(s string) *string { return &s }

func TestReconciler_Run_EndToEnd(t *testing.T) {
	f, r := newReconcilerFixture(t)

	f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
	f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
		{SKU: "A1", RawName: "Creatine Monohydrate Unflavored 500g", BasePrice: decimal.RequireFromString("10.00"), Quantity: 5, ProductID: "1"},
	}, nil)
	f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{
		{SKU: "A1", VariantID: "v1", InventoryItemID: "inv1", CurrentPrice: decimal.RequireFromString("14.50"), CurrentQuantity: 3},
	}, nil)
	weight := decimal.RequireFromString("0.5")
	f.source.On("FetchDetail", mock.Anything, "1").Return(&integration.SupplierDetail{
		ProductID: "1",
		Brand:     strPtr("Muscle Labs"),
		WeightKg:  &weight,
		Barcode:   strPtr("5060000000001"),
	}, true)
	f.sink.On("UpdateVariant", mock.Anything, testShop, "v1", "inv1",
		mock.MatchedBy(func(p decimal.Decimal) bool { return p.Equal(decimal.RequireFromString("15.50")) }), 5,
	).Return(integration.UpdateResult{VariantID: "v1"}).Once()

	outcome, err := r.Run(context.Background(), testShop)
	require.NoError(t, err)

	assert.Equal(t, integration.SyncStatusSuccess, outcome.Status)
	assert.Equal(t, 1, outcome.ItemsMatched)
	assert.Equal(t, 1, outcome.ItemsUpdated)
	assert.Equal(t, 0, outcome.UpdateFailures)
	assert.Equal(t, "/reports/sync_report_test.csv", outcome.ReportLocation)
	assert.Equal(t, []time.Duration{DefaultUpdatePause}, f.sleeps)

	require.Len(t, f.report.rows, 1)
	row := f.report.rows[0]
	assert.Equal(t, "A1", row.SKU)
	assert.Equal(t, "Creatine Monohydrate 500g", row.ItemName)
	assert.Nil(t, row.Flavor)
	assert.True(t, row.ComputedPrice.Decimal.Equal(decimal.RequireFromString("15.50")))
	assert.True(t, row.WeightGrams.Decimal.Equal(decimal.NewFromInt(500)))
	assert.True(t, f.report.finalized)

	require.Len(t, f.runs.outcomes, 1)
	assert.Same(t, outcome, f.runs.outcomes[0])

	finished := f.logs.FilterMessage("Catalog sync finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, testShop, finished[0].ContextMap()["shop"])
	assert.Equal(t, int64(1), finished[0].ContextMap()["items_updated"])

	f.source.AssertExpectations(t)
	f.sink.AssertExpectations(t)
}

func TestReconciler_Run_UpdateTrigger(t *testing.T) {
	// computed price for base 10.00 with testPricing is 15.50
	tests := []struct {
		name         string
		currentPrice string
		currentQty   int
		newQty       int
		wantUpdate   bool
	}{
		{"identical price and quantity", "15.50", 5, 5, false},
		{"identical with different scale", "15.5", 5, 5, false},
		{"price differs", "14.50", 5, 5, true},
		{"quantity differs", "15.50", 3, 5, true},
		{"both differ", "9.99", 0, 5, true},
		{"quantity drops to zero", "15.50", 5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, r := newReconcilerFixture(t)

			f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
			f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
				{SKU: "A1", RawName: "Whey Protein Strawberry 1kg", BasePrice: decimal.RequireFromString("10.00"), Quantity: tt.newQty, ProductID: "1"},
			}, nil)
			f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{
				{SKU: "A1", VariantID: "v1", InventoryItemID: "inv1", CurrentPrice: decimal.RequireFromString(tt.currentPrice), CurrentQuantity: tt.currentQty},
			}, nil)
			f.source.On("FetchDetail", mock.Anything, "1").Return(&integration.SupplierDetail{ProductID: "1"}, true)
			if tt.wantUpdate {
				f.sink.On("UpdateVariant", mock.Anything, testShop, "v1", "inv1", mock.Anything, tt.newQty).
					Return(integration.UpdateResult{VariantID: "v1"}).Once()
			}

			outcome, err := r.Run(context.Background(), testShop)
			require.NoError(t, err)

			require.Len(t, f.report.rows, 1)
			if tt.wantUpdate {
				assert.Equal(t, 1, outcome.ItemsUpdated)
				assert.Len(t, f.sleeps, 1)
			} else {
				assert.Equal(t, 0, outcome.ItemsUpdated)
				assert.Empty(t, f.sleeps)
				f.sink.AssertNotCalled(t, "UpdateVariant", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
			f.sink.AssertExpectations(t)
		})
	}
}

func TestReconciler_Run_SkipsAndAbsentPrice(t *testing.T) {
	f, r := newReconcilerFixture(t)

	f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
	f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
		{SKU: "NOMATCH", RawName: "Glutamine 300g", BasePrice: decimal.NewFromInt(8), Quantity: 1, ProductID: "9"},
		{SKU: "NOPID", RawName: "BCAA 400g", BasePrice: decimal.NewFromInt(8), Quantity: 1},
		{SKU: "NODETAIL", RawName: "Casein 900g", BasePrice: decimal.NewFromInt(8), Quantity: 1, ProductID: "3"},
		{SKU: "ZERO", RawName: "Shaker Bottle", BasePrice: decimal.Zero, Quantity: 7, ProductID: "4"},
	}, nil)
	f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{
		{SKU: "NOPID", VariantID: "v2"},
		{SKU: "NODETAIL", VariantID: "v3"},
		{SKU: "ZERO", VariantID: "v4", CurrentQuantity: 1},
	}, nil)
	f.source.On("FetchDetail", mock.Anything, "3").Return(nil, false)
	f.source.On("FetchDetail", mock.Anything, "4").Return(&integration.SupplierDetail{ProductID: "4"}, true)

	outcome, err := r.Run(context.Background(), testShop)
	require.NoError(t, err)

	require.Len(t, f.report.rows, 1)
	assert.Equal(t, "ZERO", f.report.rows[0].SKU)
	assert.False(t, f.report.rows[0].ComputedPrice.Valid)
	assert.Equal(t, 0, outcome.ItemsUpdated)
	assert.Equal(t, 2, outcome.ItemsSkipped)
	assert.Equal(t, 2, outcome.ItemsMatched)
	f.source.AssertNotCalled(t, "FetchDetail", mock.Anything, "9")
	f.sink.AssertNotCalled(t, "UpdateVariant", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_Run_DuplicateSKUs(t *testing.T) {
	f, r := newReconcilerFixture(t)

	f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
	f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
		{SKU: "A1", RawName: "Creatine 250g", BasePrice: decimal.RequireFromString("10.00"), Quantity: 5, ProductID: "1"},
	}, nil)
	f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{
		{SKU: "A1", VariantID: "first", InventoryItemID: "inv-first"},
		{SKU: "A1", VariantID: "last", InventoryItemID: "inv-last"},
	}, nil)
	f.source.On("FetchDetail", mock.Anything, "1").Return(&integration.SupplierDetail{ProductID: "1"}, true)
	f.sink.On("UpdateVariant", mock.Anything, testShop, "last", "inv-last", mock.Anything, 5).
		Return(integration.UpdateResult{VariantID: "last"}).Once()

	_, err := r.Run(context.Background(), testShop)
	require.NoError(t, err)

	dupes := f.logs.FilterMessage("Duplicate sku on storefront, keeping last variant").All()
	require.Len(t, dupes, 1)
	assert.Equal(t, "A1", dupes[0].ContextMap()["sku"])
	f.sink.AssertExpectations(t)
}

func TestReconciler_Run_UpdateFailuresArePartial(t *testing.T) {
	f, r := newReconcilerFixture(t)

	f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
	f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
		{SKU: "A1", RawName: "Creatine 250g", BasePrice: decimal.NewFromInt(10), Quantity: 5, ProductID: "1"},
		{SKU: "B2", RawName: "Whey 1kg", BasePrice: decimal.NewFromInt(20), Quantity: 2, ProductID: "2"},
	}, nil)
	f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{
		{SKU: "A1", VariantID: "v1", InventoryItemID: "i1"},
		{SKU: "B2", VariantID: "v2", InventoryItemID: "i2"},
	}, nil)
	f.source.On("FetchDetail", mock.Anything, mock.Anything).Return(&integration.SupplierDetail{}, true)
	f.sink.On("UpdateVariant", mock.Anything, testShop, "v1", "i1", mock.Anything, 5).
		Return(integration.UpdateResult{VariantID: "v1", QuantityErr: integration.ErrPlatformRequestFailed})
	f.sink.On("UpdateVariant", mock.Anything, testShop, "v2", "i2", mock.Anything, 2).
		Return(integration.UpdateResult{VariantID: "v2"})

	outcome, err := r.Run(context.Background(), testShop)
	require.NoError(t, err)

	assert.Equal(t, integration.SyncStatusPartial, outcome.Status)
	assert.Equal(t, 1, outcome.UpdateFailures)
	assert.Equal(t, 1, outcome.ItemsUpdated)
	assert.Len(t, f.report.rows, 2)
	assert.Len(t, f.sleeps, 2)
}

func TestReconciler_Run_SourceFailureFinalizesPartialReport(t *testing.T) {
	f, r := newReconcilerFixture(t)

	f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
	f.source.On("FetchAll", mock.Anything).Return(nil, integration.ErrSessionFailed)
	f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{}, nil).Maybe()

	outcome, err := r.Run(context.Background(), testShop)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrSessionFailed)

	assert.Equal(t, integration.SyncStatusFailed, outcome.Status)
	assert.True(t, f.report.finalized)
	assert.False(t, f.report.discarded)
	assert.Equal(t, "/reports/sync_report_test.csv", outcome.ReportLocation)
	assert.NotEmpty(t, outcome.Error)
	require.Len(t, f.runs.outcomes, 1)
}

func TestReconciler_Run_SettingsAndReportErrors(t *testing.T) {
	t.Run("settings load failure", func(t *testing.T) {
		f, r := newReconcilerFixture(t)
		f.settings.On("Load", mock.Anything, testShop).Return(integration.PricingConfig{}, errors.New("db down"))

		outcome, err := r.Run(context.Background(), testShop)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load pricing settings")
		assert.Equal(t, integration.SyncStatusFailed, outcome.Status)
		assert.True(t, f.report.finalized)
		assert.Empty(t, f.report.rows)
		assert.Equal(t, "/reports/sync_report_test.csv", outcome.ReportLocation)
		f.source.AssertNotCalled(t, "FetchAll", mock.Anything)
	})

	t.Run("report create failure", func(t *testing.T) {
		f, r := newReconcilerFixture(t)
		f.writer.err = errors.New("disk full")

		outcome, err := r.Run(context.Background(), testShop)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create report")
		assert.Equal(t, integration.SyncStatusFailed, outcome.Status)
		assert.Empty(t, outcome.ReportLocation)
		f.settings.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	})

	t.Run("row write failure aborts the run", func(t *testing.T) {
		f, r := newReconcilerFixture(t)
		f.report.appendErr = errors.New("short write")
		f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
		f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
			{SKU: "A1", RawName: "Creatine 250g", BasePrice: decimal.NewFromInt(10), Quantity: 5, ProductID: "1"},
		}, nil)
		f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{{SKU: "A1", VariantID: "v1"}}, nil)
		f.source.On("FetchDetail", mock.Anything, "1").Return(&integration.SupplierDetail{}, true)

		outcome, err := r.Run(context.Background(), testShop)
		require.Error(t, err)
		assert.Equal(t, integration.SyncStatusFailed, outcome.Status)
		assert.True(t, f.report.finalized)
	})
}

func TestReconciler_Run_CancelledDiscardsReport(t *testing.T) {
	f, r := newReconcilerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
	f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
		{SKU: "A1", RawName: "Creatine 250g", BasePrice: decimal.NewFromInt(10), Quantity: 5, ProductID: "1"},
		{SKU: "B2", RawName: "Whey 1kg", BasePrice: decimal.NewFromInt(20), Quantity: 2, ProductID: "2"},
	}, nil)
	f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{
		{SKU: "A1", VariantID: "v1", InventoryItemID: "i1"},
		{SKU: "B2", VariantID: "v2", InventoryItemID: "i2"},
	}, nil)
	f.source.On("FetchDetail", mock.Anything, "1").Return(&integration.SupplierDetail{}, true)
	f.sink.On("UpdateVariant", mock.Anything, testShop, "v1", "i1", mock.Anything, 5).
		Run(func(mock.Arguments) { cancel() }).
		Return(integration.UpdateResult{VariantID: "v1"}).Once()

	outcome, err := r.Run(ctx, testShop)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, integration.SyncStatusCancelled, outcome.Status)
	assert.True(t, f.report.discarded)
	assert.False(t, f.report.finalized)
	assert.Empty(t, outcome.ReportLocation)
	f.source.AssertNotCalled(t, "FetchDetail", mock.Anything, "2")
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), 0))
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestReconciler_Run_RowsFollowSupplierOrder(t *testing.T) {
	f, r := newReconcilerFixture(t)

	f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
	f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
		{SKU: "C3", RawName: "Casein 900g", BasePrice: decimal.NewFromInt(10), Quantity: 1, ProductID: "3"},
		{SKU: "A1", RawName: "Creatine 250g", BasePrice: decimal.NewFromInt(10), Quantity: 1, ProductID: "1"},
		{SKU: "B2", RawName: "Whey 1kg", BasePrice: decimal.NewFromInt(10), Quantity: 1, ProductID: "2"},
	}, nil)
	// storefront order differs from supplier order
	f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{
		{SKU: "A1", VariantID: "v1", CurrentPrice: decimal.RequireFromString("15.50"), CurrentQuantity: 1},
		{SKU: "B2", VariantID: "v2", CurrentPrice: decimal.RequireFromString("15.50"), CurrentQuantity: 1},
		{SKU: "C3", VariantID: "v3", CurrentPrice: decimal.RequireFromString("15.50"), CurrentQuantity: 1},
	}, nil)
	f.source.On("FetchDetail", mock.Anything, mock.Anything).Return(&integration.SupplierDetail{}, true)

	outcome, err := r.Run(context.Background(), testShop)
	require.NoError(t, err)

	require.Len(t, f.report.rows, 3)
	skus := make([]string, 0, len(f.report.rows))
	for _, row := range f.report.rows {
		skus = append(skus, row.SKU)
	}
	assert.Equal(t, []string{"C3", "A1", "B2"}, skus)
	assert.Equal(t, 3, outcome.ItemsMatched)
	assert.Equal(t, 0, outcome.ItemsUpdated)
	f.sink.AssertNotCalled(t, "UpdateVariant", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_Run_SinkFailureFinalizesPartialReport(t *testing.T) {
	f, r := newReconcilerFixture(t)

	f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
	f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
		{SKU: "A1", RawName: "Creatine 250g", BasePrice: decimal.NewFromInt(10), Quantity: 5, ProductID: "1"},
	}, nil).Maybe()
	f.sink.On("FetchAll", mock.Anything, testShop).Return(nil, integration.ErrPlatformRateLimited)

	outcome, err := r.Run(context.Background(), testShop)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrPlatformRateLimited)
	assert.Contains(t, err.Error(), "failed to fetch storefront catalog")

	assert.Equal(t, integration.SyncStatusFailed, outcome.Status)
	assert.True(t, f.report.finalized)
	assert.False(t, f.report.discarded)
	assert.Empty(t, f.report.rows)
	assert.Equal(t, "/reports/sync_report_test.csv", outcome.ReportLocation)
	f.source.AssertNotCalled(t, "FetchDetail", mock.Anything, mock.Anything)
	f.sink.AssertNotCalled(t, "UpdateVariant", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_Run_DeadlineFinalizesPartialReport(t *testing.T) {
	f, r := newReconcilerFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f.settings.On("Load", mock.Anything, testShop).Return(testPricing(), nil)
	f.source.On("FetchAll", mock.Anything).Return([]integration.SupplierItem{
		{SKU: "A1", RawName: "Creatine 250g", BasePrice: decimal.NewFromInt(10), Quantity: 5, ProductID: "1"},
		{SKU: "A2", RawName: "Whey 1kg", BasePrice: decimal.NewFromInt(20), Quantity: 2, ProductID: "2"},
	}, nil)
	f.sink.On("FetchAll", mock.Anything, testShop).Return([]integration.StorefrontVariant{
		{SKU: "A1", VariantID: "v1", InventoryItemID: "i1"},
		{SKU: "A2", VariantID: "v2", InventoryItemID: "i2"},
	}, nil)
	f.source.On("FetchDetail", mock.Anything, "1").Return(&integration.SupplierDetail{}, true)
	// the second detail lookup hangs until the run's deadline passes
	f.source.On("FetchDetail", mock.Anything, "2").
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(nil, false)
	f.sink.On("UpdateVariant", mock.Anything, testShop, "v1", "i1", mock.Anything, 5).
		Return(integration.UpdateResult{VariantID: "v1"}).Once()

	outcome, err := r.Run(ctx, testShop)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, integration.SyncStatusFailed, outcome.Status)
	assert.Equal(t, 1, outcome.ItemsUpdated)
	assert.True(t, f.report.finalized)
	assert.False(t, f.report.discarded)
	require.Len(t, f.report.rows, 1)
	assert.Equal(t, "A1", f.report.rows[0].SKU)
	assert.Equal(t, "/reports/sync_report_test.csv", outcome.ReportLocation)
	f.sink.AssertNotCalled(t, "UpdateVariant", mock.Anything, testShop, "v2", "i2", mock.Anything, mock.Anything)
}
