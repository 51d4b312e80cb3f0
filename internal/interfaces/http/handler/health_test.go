package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHealthHandler(t *testing.T) {
	h := NewHealthHandler("shopsync", "1.2.3")
	assert.NotNil(t, h)
	assert.False(t, h.startTime.IsZero())
	assert.Empty(t, h.checks)
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		wantStatus int
		wantState  string
		wantCheck  string
	}{
		{"all checks pass", nil, http.StatusOK, "ok", "ok"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "degraded", "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("shopsync", "1.2.3").
				WithCheck("database", func(ctx context.Context) error { return tt.dbErr })

			router := gin.New()
			h.RegisterRoutes(&router.RouterGroup)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			data := resp.Data.(map[string]interface{})
			assert.Equal(t, tt.wantState, data["status"])
			assert.Equal(t, "shopsync", data["name"])
			assert.Equal(t, "1.2.3", data["version"])
			assert.NotEmpty(t, data["go_version"])
			checks := data["checks"].(map[string]interface{})
			assert.Equal(t, tt.wantCheck, checks["database"])
		})
	}
}

func TestHealthHandler_NoChecks(t *testing.T) {
	h := NewHealthHandler("shopsync", "dev")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "checks")
}
