package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	appintegration "github.com/shopsync/backend/internal/application/integration"
	"github.com/shopsync/backend/internal/infrastructure/cache"
	"github.com/shopsync/backend/internal/infrastructure/config"
	"github.com/shopsync/backend/internal/infrastructure/ecommerce"
	"github.com/shopsync/backend/internal/infrastructure/logger"
	"github.com/shopsync/backend/internal/infrastructure/persistence"
	"github.com/shopsync/backend/internal/infrastructure/report"
	"github.com/shopsync/backend/internal/infrastructure/scheduler"
	"github.com/shopsync/backend/internal/infrastructure/storage"
	"github.com/shopsync/backend/internal/infrastructure/telemetry"
	"github.com/shopsync/backend/internal/interfaces/http/handler"
	"github.com/shopsync/backend/internal/interfaces/http/middleware"
	"github.com/shopsync/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// A missing .env is fine, the environment and config.toml still apply
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  logger.DefaultTimeFormat,
		Service:     cfg.App.Name,
		Environment: cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting catalog sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Version:           version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Database.SlowQueryThreshold))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	credentials, err := newCredentialStore(cfg, db, log)
	if err != nil {
		log.Fatal("Failed to configure credential store", zap.Error(err))
	}
	settings := persistence.NewGormSettingsStore(db.DB)

	// Run lock: Redis when enabled, in-memory otherwise
	runLock, err := cache.NewRunLockFactory(cfg.Redis, cache.WithLogger(log)).CreateLock()
	if err != nil {
		log.Fatal("Failed to create run lock", zap.Error(err))
	}
	defer func() {
		if err := runLock.Close(); err != nil {
			log.Error("Error closing run lock", zap.Error(err))
		}
	}()

	// Catalog adapters
	supplier, err := newSupplierAdapter(cfg, log)
	if err != nil {
		log.Fatal("Failed to configure supplier adapter", zap.Error(err))
	}
	shopify, err := newShopifyAdapter(cfg, credentials, log)
	if err != nil {
		log.Fatal("Failed to configure Shopify adapter", zap.Error(err))
	}

	// Reports
	reports, err := newReportWriter(cfg, log)
	if err != nil {
		log.Fatal("Failed to configure report writer", zap.Error(err))
	}

	var metrics *telemetry.SyncMetrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewSyncMetrics(telemetry.MetricsConfig{Namespace: cfg.Metrics.Namespace})
	}

	reconciler := appintegration.NewReconciler(
		supplier, shopify, settings, reports,
		log.Named("reconciler"),
		appintegration.WithUpdatePause(cfg.Shopify.UpdatePause),
		appintegration.WithRunRecorder(metrics),
	)

	// Scheduler
	schedulerConfig := scheduler.DefaultTenantSyncSchedulerConfig()
	schedulerConfig.Interval = cfg.Scheduler.Interval
	schedulerConfig.Workers = cfg.Scheduler.Workers
	schedulerConfig.QueueSize = cfg.Scheduler.QueueSize
	schedulerConfig.JobTimeout = cfg.Scheduler.JobTimeout
	if cfg.Redis.LockTTL > 0 {
		schedulerConfig.LockTTL = cfg.Redis.LockTTL
	}
	if schedulerConfig.LockTTL < schedulerConfig.JobTimeout {
		schedulerConfig.LockTTL = schedulerConfig.JobTimeout
	}

	syncScheduler, err := scheduler.NewTenantSyncScheduler(schedulerConfig, reconciler, log.Named("scheduler"), scheduler.WithRunLock(runLock))
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		if cfg.Scheduler.RegisterOnStartup {
			registered, err := syncScheduler.RegisterAll(context.Background(), credentials)
			if err != nil {
				log.Error("Failed to register installed shops", zap.Error(err))
			}
			log.Info("Installed shops registered", zap.Int("count", registered))
		}
	} else {
		log.Warn("Sync scheduler disabled, only the HTTP API is served")
	}

	// HTTP
	middleware.SetupValidator()
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		},
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, log)
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	healthHandler := handler.NewHealthHandler(cfg.App.Name, version).
		WithCheck("database", func(context.Context) error { return db.Ping() })
	oauthHandler := handler.NewOAuthHandler(shopify, credentials, syncScheduler, handler.OAuthConfig{
		TokenTTL:      cfg.Shopify.TokenTTL,
		SecureCookies: cfg.App.Env == "production",
	})
	shopHandler := handler.NewShopHandler(syncScheduler, credentials, settings, reports).
		WithBodyLimit(cfg.HTTP.MaxBodySize)

	opts := []router.RouterOption{router.WithAPIVersion("v1")}
	if metrics != nil {
		opts = append(opts, router.WithMetrics(cfg.Metrics.Path, metrics.Handler()))
	}
	r := router.NewRouter(engine, opts...)
	r.RegisterRoot(healthHandler).
		RegisterRoot(oauthHandler).
		Register(shopHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if cfg.Scheduler.Enabled {
		drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Scheduler.DrainTimeout)
		defer drainCancel()
		if err := syncScheduler.Stop(drainCtx); err != nil {
			log.Error("Sync scheduler did not drain in time", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

func newSupplierAdapter(cfg *config.Config, log *zap.Logger) (*ecommerce.PowerBodyAdapter, error) {
	detailPolicy := ecommerce.SupplierDetailPolicy()
	if cfg.Supplier.DetailMaxAttempts > 0 {
		detailPolicy.MaxAttempts = cfg.Supplier.DetailMaxAttempts
	}
	if cfg.Supplier.DetailInitialDelay > 0 {
		detailPolicy.InitialDelay = cfg.Supplier.DetailInitialDelay
	}

	supplierLog := log.Named("powerbody")
	rpc := ecommerce.NewSOAPClient(cfg.Supplier.Endpoint, cfg.Supplier.Timeout, supplierLog)
	return ecommerce.NewPowerBodyAdapter(&ecommerce.PowerBodyConfig{
		Endpoint:       cfg.Supplier.Endpoint,
		Username:       cfg.Supplier.Username,
		Password:       cfg.Supplier.Password,
		TimeoutSeconds: int(cfg.Supplier.Timeout.Seconds()),
		DetailPolicy:   detailPolicy,
	}, rpc, supplierLog)
}

func newCredentialStore(cfg *config.Config, db *persistence.Database, log *zap.Logger) (*persistence.GormCredentialStore, error) {
	if cfg.Shopify.TokenKey == "" {
		log.Warn("shopify.token_key is not set; access tokens are stored unencrypted")
		return persistence.NewGormCredentialStore(db.DB), nil
	}
	key, err := persistence.ParseTokenKey(cfg.Shopify.TokenKey)
	if err != nil {
		return nil, err
	}
	tokenCipher, err := persistence.NewTokenCipher(key)
	if err != nil {
		return nil, err
	}
	return persistence.NewGormCredentialStore(db.DB, persistence.WithTokenCipher(tokenCipher)), nil
}

func newShopifyAdapter(cfg *config.Config, credentials *persistence.GormCredentialStore, log *zap.Logger) (*ecommerce.ShopifyAdapter, error) {
	shopifyConfig := ecommerce.NewShopifyConfig(cfg.Shopify.ClientID, cfg.Shopify.ClientSecret)
	shopifyConfig.Scopes = cfg.Shopify.Scopes
	shopifyConfig.APIVersion = cfg.Shopify.APIVersion
	shopifyConfig.BaseURL = cfg.Shopify.BaseURL
	shopifyConfig.RedirectURL = cfg.App.RedirectURL()
	shopifyConfig.LocationID = cfg.Shopify.LocationID
	shopifyConfig.MinRequestInterval = cfg.Shopify.MinRequestInterval
	shopifyConfig.TimeoutSeconds = int(cfg.Shopify.Timeout.Seconds())

	return ecommerce.NewShopifyAdapter(shopifyConfig, credentials, log.Named("shopify"))
}

func newReportWriter(cfg *config.Config, log *zap.Logger) (*report.CSVWriter, error) {
	reportLog := log.Named("report")
	if !cfg.Storage.Enabled {
		return report.NewCSVWriter(cfg.Report.Dir, reportLog)
	}

	mirror, err := storage.NewS3ReportStorage(&cfg.Storage, storage.WithLogger(reportLog))
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mirror.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("Report mirror enabled", zap.String("bucket", mirror.GetBucket()))
	return report.NewCSVWriter(cfg.Report.Dir, reportLog, report.WithMirror(mirror))
}
