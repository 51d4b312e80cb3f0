package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"github.com/shopsync/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine         *gin.Engine
	apiVersion     string
	registrars     []RouteRegistrar
	rootRegistrars []RouteRegistrar
	metricsPath    string
	metrics        http.Handler
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithMetrics exposes the Prometheus handler at path
func WithMetrics(path string, handler http.Handler) RouterOption {
	return func(r *Router) {
		r.metricsPath = path
		r.metrics = handler
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:         engine,
		apiVersion:     "v1",
		registrars:     make([]RouteRegistrar, 0),
		rootRegistrars: make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar mounted under /api/{version}
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// RegisterRoot adds a RouteRegistrar mounted at the engine root,
// used by the health probe and the OAuth install flow
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.rootRegistrars = append(r.rootRegistrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	for _, registrar := range r.rootRegistrars {
		registrar.RegisterRoutes(&r.engine.RouterGroup)
	}

	if r.metrics != nil && r.metricsPath != "" {
		r.engine.GET(r.metricsPath, gin.WrapH(r.metrics))
	}

	// Create versioned API group
	api := r.engine.Group("/api/" + r.apiVersion)

	// Register all route registrars
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "Route not found", c.GetString("request_id")))
	})
}

// EngineConfig configures the middleware chain of NewEngine
type EngineConfig struct {
	Tracing        middleware.TracingConfig
	TrustedProxies []string
}

// NewEngine creates a gin engine with the request id, tracing, logging and
// recovery middleware installed in that order
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.RequestID(),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
	)
	return engine, nil
}
