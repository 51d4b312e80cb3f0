package handler

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	appintegration "github.com/shopsync/backend/internal/application/integration"
	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// DefaultHistoryLimit is the number of outcomes returned by the status endpoint
const DefaultHistoryLimit = 10

// SyncScheduler is the part of the tenant scheduler the API drives
type SyncScheduler interface {
	StartSyncForTenant(tenant string) bool
	StopSyncForTenant(tenant string) bool
	TriggerNow(tenant string) error
	IsScheduled(tenant string) bool
	IsInProgress(tenant string) bool
	History(tenant string, limit int) []*integration.SyncOutcome
}

// ShopHandler serves the per-shop sync API
type ShopHandler struct {
	BaseHandler
	scheduler   SyncScheduler
	credentials integration.CredentialStore
	settings    integration.SettingsStore
	reports     integration.ReportWriter
	bodyLimit   int64
}

// NewShopHandler creates a new ShopHandler
func NewShopHandler(
	scheduler SyncScheduler,
	credentials integration.CredentialStore,
	settings integration.SettingsStore,
	reports integration.ReportWriter,
) *ShopHandler {
	return &ShopHandler{
		scheduler:   scheduler,
		credentials: credentials,
		settings:    settings,
		reports:     reports,
		bodyLimit:   middleware.DefaultBodyLimit,
	}
}

// WithBodyLimit overrides the maximum settings body size
func (h *ShopHandler) WithBodyLimit(limit int64) *ShopHandler {
	if limit > 0 {
		h.bodyLimit = limit
	}
	return h
}

// RegisterRoutes registers the shop routes on the versioned API group
func (h *ShopHandler) RegisterRoutes(rg *gin.RouterGroup) {
	shops := rg.Group("/shops/:shop", h.requireShop)
	shops.GET("/status", h.GetStatus)
	shops.GET("/runs", h.ListRuns)
	shops.POST("/sync", h.TriggerSync)
	shops.GET("/settings", h.GetSettings)
	shops.PUT("/settings", middleware.BodyLimit(h.bodyLimit), h.UpdateSettings)
	shops.GET("/reports/latest", h.DownloadLatestReport)
	shops.DELETE("", h.Uninstall)

	rg.GET("/reports/latest", h.DownloadLatestReport)
}

// GetStatus returns the registration state and the latest outcomes of a shop.
// The optional limit query parameter bounds the number of outcomes.
func (h *ShopHandler) GetStatus(c *gin.Context) {
	shop := shopParam(c)

	limit, ok := h.historyLimit(c)
	if !ok {
		return
	}

	_, installed, err := h.credentials.Get(c.Request.Context(), shop)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	history := h.scheduler.History(shop, limit)
	h.Success(c, appintegration.ShopStatusResponse{
		Shop:        shop,
		Installed:   installed,
		Scheduled:   h.scheduler.IsScheduled(shop),
		InProgress:  h.scheduler.IsInProgress(shop),
		LastRuns:    appintegration.ToSyncOutcomeResponses(history),
		LastSuccess: appintegration.LastSuccessAt(history),
	})
}

// ListRuns returns the retained outcomes of a shop, newest first
func (h *ShopHandler) ListRuns(c *gin.Context) {
	limit, ok := h.historyLimit(c)
	if !ok {
		return
	}
	runs := appintegration.ToSyncOutcomeResponses(h.scheduler.History(shopParam(c), limit))
	h.SuccessList(c, runs, len(runs))
}

// historyLimit parses the optional limit query parameter
func (h *ShopHandler) historyLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return DefaultHistoryLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		h.BadRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return n, true
}

// TriggerSync queues an immediate sync of the shop
func (h *ShopHandler) TriggerSync(c *gin.Context) {
	shop := shopParam(c)

	if !h.requireInstalled(c, shop) {
		return
	}

	if err := h.scheduler.TriggerNow(shop); err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Manual sync queued")
	h.Accepted(c, appintegration.SyncTriggerResponse{Shop: shop, Queued: true})
}

// GetSettings returns the pricing settings of the shop
func (h *ShopHandler) GetSettings(c *gin.Context) {
	shop := shopParam(c)

	cfg, err := h.settings.Load(c.Request.Context(), shop)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToPricingSettingsResponse(shop, cfg))
}

// UpdateSettings replaces the pricing settings of the shop.
// Fields absent from the body keep their stored values.
func (h *ShopHandler) UpdateSettings(c *gin.Context) {
	shop := shopParam(c)
	ctx := c.Request.Context()

	current, err := h.settings.Load(ctx, shop)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	req := appintegration.NewPricingSettingsRequest(current)
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	cfg := req.ToPricingConfig()
	if err := h.settings.Save(ctx, shop, cfg); err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Pricing settings updated",
		zap.String("vat_percent", cfg.VATPercent.String()),
		zap.String("paypal_fee_percent", cfg.PayPalFeePercent.String()),
		zap.String("secondary_fee_flat", cfg.SecondaryFeeFlat.String()),
		zap.String("profit_margin_percent", cfg.ProfitMarginPercent.String()),
	)
	h.Success(c, appintegration.ToPricingSettingsResponse(shop, cfg))
}

// DownloadLatestReport streams the newest finalized CSV report.
// Without a :shop parameter the newest report across all shops is returned.
func (h *ShopHandler) DownloadLatestReport(c *gin.Context) {
	path, err := h.reports.Latest(c.Request.Context(), shopParam(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.FileAttachment(path, filepath.Base(path))
}

// Uninstall stops the schedule of the shop and deletes its access token
func (h *ShopHandler) Uninstall(c *gin.Context) {
	shop := shopParam(c)

	unscheduled := h.scheduler.StopSyncForTenant(shop)
	if err := h.credentials.Delete(c.Request.Context(), shop); err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("Shop uninstalled", zap.Bool("unscheduled", unscheduled))
	c.Status(http.StatusNoContent)
}

// requireInstalled writes 404 and returns false when the shop has no live token
func (h *ShopHandler) requireInstalled(c *gin.Context, shop string) bool {
	_, ok, err := h.credentials.Get(c.Request.Context(), shop)
	if err != nil {
		h.HandleError(c, err)
		return false
	}
	if !ok {
		h.HandleError(c, integration.ErrCredentialsNotFound)
		return false
	}
	return true
}
