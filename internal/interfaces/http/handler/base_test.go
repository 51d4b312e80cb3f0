package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopsync/backend/internal/domain/integration"
	"github.com/shopsync/backend/internal/infrastructure/scheduler"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name: "from gin context",
			setup: func(c *gin.Context) {
				c.Set("request_id", "ctx-request-id")
			},
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set(RequestIDKey, "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context takes precedence over header",
			setup: func(c *gin.Context) {
				c.Set("request_id", "ctx-id")
				c.Request.Header.Set(RequestIDKey, "header-id")
			},
			expectedID: "ctx-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(c)

			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestBaseHandlerResponses(t *testing.T) {
	h := &BaseHandler{}

	t.Run("success", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		h.Success(c, gin.H{"shop": testShop})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeResponse(t, w).Success)
	})

	t.Run("accepted", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		h.Accepted(c, gin.H{"queued": true})

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		h.SuccessList(c, []string{"a", "b", "c"}, 3)

		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(3), resp.Meta.Total)
	})

	t.Run("no content", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		h.NoContent(c)
		c.Writer.WriteHeaderNow()

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestBaseHandlerErrorMethods(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name         string
		call         func(*gin.Context)
		expectedCode int
		expectedErr  string
	}{
		{"bad request", func(c *gin.Context) { h.BadRequest(c, "bad") }, http.StatusBadRequest, dto.ErrCodeBadRequest},
		{"not found", func(c *gin.Context) { h.NotFound(c, "missing") }, http.StatusNotFound, dto.ErrCodeNotFound},
		{"conflict", func(c *gin.Context) { h.Conflict(c, "conflict") }, http.StatusConflict, dto.ErrCodeConflict},
		{"internal", func(c *gin.Context) { h.InternalError(c, "boom") }, http.StatusInternalServerError, dto.ErrCodeInternal},
		{"with code", func(c *gin.Context) { h.ErrorWithCode(c, dto.ErrCodeSyncInProgress, "busy") }, http.StatusConflict, dto.ErrCodeSyncInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.Header.Set(RequestIDKey, "req-1")

			tt.call(c)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.True(t, c.IsAborted())
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestBaseHandlerHandleError(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedErr  string
	}{
		{"invalid shop", fmt.Errorf("%w: %q", integration.ErrInvalidTenant, "x"), http.StatusBadRequest, dto.ErrCodeInvalidShop},
		{"invalid pricing", integration.ErrInvalidPricing, http.StatusBadRequest, dto.ErrCodeValidationRange},
		{"no report", integration.ErrReportNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"run in progress", fmt.Errorf("shop busy: %w", scheduler.ErrRunInProgress), http.StatusConflict, dto.ErrCodeSyncInProgress},
		{"queue full", scheduler.ErrJobQueueFull, http.StatusServiceUnavailable, dto.ErrCodeQueueFull},
		{"scheduler stopped", scheduler.ErrSchedulerNotRunning, http.StatusServiceUnavailable, dto.ErrCodeSchedulerStopped},
		{"oauth rejected", integration.ErrPlatformAuthFailed, http.StatusBadGateway, dto.ErrCodeOAuthFailed},
		{"platform down", integration.ErrPlatformUnavailable, http.StatusBadGateway, dto.ErrCodeUnavailable},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h.HandleError(c, tt.err)

			assert.Equal(t, tt.expectedCode, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
		})
	}

	t.Run("nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		h.HandleError(c, nil)
		assert.False(t, c.IsAborted())
		assert.Empty(t, w.Body.String())
	})
}

func TestRequireShop(t *testing.T) {
	h := &BaseHandler{}
	router := gin.New()
	router.GET("/shops/:shop", h.requireShop, func(c *gin.Context) {
		c.String(http.StatusOK, shopParam(c))
	})

	t.Run("normalizes the domain", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/shops/Demo.MyShopify.com", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, testShop, w.Body.String())
	})

	t.Run("rejects other domains", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/shops/example.com", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidShop, decodeResponse(t, w).Error.Code)
	})
}
