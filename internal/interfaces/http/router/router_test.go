package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"github.com/shopsync/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// registrarFunc adapts a function to RouteRegistrar
type registrarFunc func(rg *gin.RouterGroup)

func (f registrarFunc) RegisterRoutes(rg *gin.RouterGroup) { f(rg) }

func ping(path string) RouteRegistrar {
	return registrarFunc(func(rg *gin.RouterGroup) {
		rg.GET(path, func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
	})
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
	assert.Empty(t, r.rootRegistrars)
}

func TestRouterWithAPIVersion(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(ping("/ping")).RegisterRoot(ping("/health"))
	r.Setup()

	t.Run("versioned routes", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/ping")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "pong", w.Body.String())
	})

	t.Run("root routes", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
		assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, "/api/v1/health").Code)
	})

	t.Run("unknown route uses the error envelope", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/nope")
		require.Equal(t, http.StatusNotFound, w.Code)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})
}

func TestRouterMetrics(t *testing.T) {
	engine := gin.New()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("sync_runs_total 3\n"))
	})
	NewRouter(engine, WithMetrics("/metrics", metrics)).Setup()

	w := serve(engine, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sync_runs_total 3\n", w.Body.String())
}

func TestNewEngine(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	engine, err := NewEngine(EngineConfig{Tracing: middleware.TracingConfig{Enabled: false}}, zap.New(core))
	require.NoError(t, err)

	var handlerRequestID string
	engine.GET("/api/v1/shops/:shop/status", func(c *gin.Context) {
		handlerRequestID = logger.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})
	engine.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	t.Run("propagates the caller request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/shops/demo.myshopify.com/status", nil)
		req.Header.Set(logger.RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-42", w.Header().Get(logger.RequestIDHeader))
		assert.Equal(t, "req-42", handlerRequestID)

		entries := logs.FilterField(zap.String("request_id", "req-42")).All()
		require.NotEmpty(t, entries)
		assert.Equal(t, "demo.myshopify.com", entries[0].ContextMap()["shop"])
	})

	t.Run("generates a request id", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/api/v1/shops/demo.myshopify.com/status")
		assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
	})

	t.Run("recovers from panics", func(t *testing.T) {
		w := serve(engine, http.MethodGet, "/boom")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	})
}

func TestNewEngine_InvalidTrustedProxy(t *testing.T) {
	_, err := NewEngine(EngineConfig{TrustedProxies: []string{"not-an-ip"}}, zap.NewNop())
	assert.Error(t, err)
}
