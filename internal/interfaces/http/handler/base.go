package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/infrastructure/scheduler"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// RequestIDKey is the header carrying the request ID
const RequestIDKey = logger.RequestIDHeader

// shopContextKey holds the normalized shop domain of /shops/:shop routes
const shopContextKey = "shop_domain"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	if id := logger.GetRequestID(c.Request.Context()); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

// errorMapping maps a sentinel error to an API error code
type errorMapping struct {
	target  error
	code    string
	message string
}

var errorMappings = []errorMapping{
	{integration.ErrInvalidTenant, dto.ErrCodeInvalidShop, "Invalid shop domain"},
	{integration.ErrInvalidPricing, dto.ErrCodeValidationRange, "Invalid pricing settings"},
	{integration.ErrCredentialsNotFound, dto.ErrCodeNotFound, "Shop is not installed"},
	{integration.ErrReportNotFound, dto.ErrCodeNotFound, "No report available"},
	{scheduler.ErrRunInProgress, dto.ErrCodeSyncInProgress, "A sync of this shop is already running"},
	{scheduler.ErrJobQueueFull, dto.ErrCodeQueueFull, "Sync queue is full, retry later"},
	{scheduler.ErrSchedulerNotRunning, dto.ErrCodeSchedulerStopped, "Sync scheduler is not running"},
	{integration.ErrPlatformAuthFailed, dto.ErrCodeOAuthFailed, "Shopify rejected the authorization"},
	{integration.ErrPlatformRateLimited, dto.ErrCodeUnavailable, "Shopify is rate limiting requests"},
	{integration.ErrPlatformUnavailable, dto.ErrCodeUnavailable, "Upstream platform unavailable"},
	{integration.ErrPlatformRequestFailed, dto.ErrCodeUnavailable, "Upstream platform request failed"},
	{integration.ErrPlatformInvalidResponse, dto.ErrCodeUnavailable, "Upstream platform returned an invalid response"},
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// SuccessList sends a success response with the item count
func (h *BaseHandler) SuccessList(c *gin.Context, data any, total int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, int64(total)))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.AbortWithStatusJSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError converts domain and scheduler errors to HTTP responses.
// Unmapped errors are logged and reported as internal errors.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			h.ErrorWithCode(c, m.code, m.message)
			return
		}
	}

	logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}

// shopParam returns the normalized shop domain set by requireShop
func shopParam(c *gin.Context) string {
	return c.GetString(shopContextKey)
}

// requireShop validates the :shop path parameter
func (h *BaseHandler) requireShop(c *gin.Context) {
	shop, err := integration.NormalizeShopDomain(c.Param("shop"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Set(shopContextKey, shop)
	c.Next()
}
