package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Supplier  SupplierConfig
	Shopify   ShopifyConfig
	Report    ReportConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
	Metrics   MetricsConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// PublicURL is the externally reachable base URL, used for the OAuth redirect
	PublicURL string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	// SlowQueryThreshold logs statements slower than this at warn; 0 disables
	SlowQueryThreshold time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	// LockTTL bounds how long a crashed run keeps its tenant locked
	LockTTL time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodySize     int64
	TrustedProxies  []string
}

// SchedulerConfig holds tenant sync scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	Interval          time.Duration // time between runs of one shop
	Workers           int
	QueueSize         int
	JobTimeout        time.Duration
	RegisterOnStartup bool
	DrainTimeout      time.Duration
}

// SupplierConfig holds the PowerBody dropshipping API settings
type SupplierConfig struct {
	Endpoint           string
	Username           string
	Password           string
	Timeout            time.Duration
	DetailMaxAttempts  int
	DetailInitialDelay time.Duration
}

// ShopifyConfig holds the Shopify app settings
type ShopifyConfig struct {
	ClientID           string
	ClientSecret       string
	Scopes             string
	APIVersion         string
	BaseURL            string
	LocationID         int64
	MinRequestInterval time.Duration
	UpdatePause        time.Duration // pause after each triggered variant update
	TokenTTL           time.Duration // 0 keeps tokens until uninstall
	TokenKey           string        // base64 32-byte key sealing stored access tokens
	Timeout            time.Duration
}

// ReportConfig holds report output settings
type ReportConfig struct {
	Dir string
}

// StorageConfig holds S3-compatible storage settings for the report mirror
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	Prefix            string
	PresignExpiration time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

// MetricsConfig holds Prometheus metrics settings
type MetricsConfig struct {
	Enabled   bool
	Path      string
	Namespace string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SHOPSYNC_ prefix (e.g., SHOPSYNC_SHOPIFY_CLIENT_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SHOPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans whose zero value is not the default
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.register_on_startup", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("database.slow_query_threshold", 200*time.Millisecond)

	cfg := &Config{
		App: AppConfig{
			Name:      v.GetString("app.name"),
			Env:       v.GetString("app.env"),
			Port:      v.GetString("app.port"),
			PublicURL: v.GetString("app.public_url"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),

			SlowQueryThreshold: v.GetDuration("database.slow_query_threshold"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			Interval:          v.GetDuration("scheduler.interval"),
			Workers:           v.GetInt("scheduler.workers"),
			QueueSize:         v.GetInt("scheduler.queue_size"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			RegisterOnStartup: v.GetBool("scheduler.register_on_startup"),
			DrainTimeout:      v.GetDuration("scheduler.drain_timeout"),
		},
		Supplier: SupplierConfig{
			Endpoint:           v.GetString("supplier.endpoint"),
			Username:           v.GetString("supplier.username"),
			Password:           v.GetString("supplier.password"),
			Timeout:            v.GetDuration("supplier.timeout"),
			DetailMaxAttempts:  v.GetInt("supplier.detail_max_attempts"),
			DetailInitialDelay: v.GetDuration("supplier.detail_initial_delay"),
		},
		Shopify: ShopifyConfig{
			ClientID:           v.GetString("shopify.client_id"),
			ClientSecret:       v.GetString("shopify.client_secret"),
			Scopes:             v.GetString("shopify.scopes"),
			APIVersion:         v.GetString("shopify.api_version"),
			BaseURL:            v.GetString("shopify.base_url"),
			LocationID:         v.GetInt64("shopify.location_id"),
			MinRequestInterval: v.GetDuration("shopify.min_request_interval"),
			UpdatePause:        v.GetDuration("shopify.update_pause"),
			TokenTTL:           v.GetDuration("shopify.token_ttl"),
			TokenKey:           v.GetString("shopify.token_key"),
			Timeout:            v.GetDuration("shopify.timeout"),
		},
		Report: ReportConfig{
			Dir: v.GetString("report.dir"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			Prefix:            v.GetString("storage.prefix"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
		Metrics: MetricsConfig{
			Enabled:   v.GetBool("metrics.enabled"),
			Path:      v.GetString("metrics.path"),
			Namespace: v.GetString("metrics.namespace"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shopsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8000"
	}
	if cfg.App.PublicURL == "" {
		cfg.App.PublicURL = "http://localhost:" + cfg.App.Port
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "shopsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "shopsync.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 2 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 15 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 60 * time.Minute
	}
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 10
	}
	if cfg.Scheduler.QueueSize == 0 {
		cfg.Scheduler.QueueSize = 100
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 2 * time.Hour
	}
	if cfg.Scheduler.DrainTimeout == 0 {
		cfg.Scheduler.DrainTimeout = 30 * time.Second
	}
	if cfg.Supplier.Timeout == 0 {
		cfg.Supplier.Timeout = 60 * time.Second
	}
	if cfg.Supplier.DetailMaxAttempts == 0 {
		cfg.Supplier.DetailMaxAttempts = 3
	}
	if cfg.Supplier.DetailInitialDelay == 0 {
		cfg.Supplier.DetailInitialDelay = 15 * time.Second
	}
	if cfg.Shopify.Scopes == "" {
		cfg.Shopify.Scopes = "read_products,write_products,write_inventory"
	}
	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2024-01"
	}
	if cfg.Shopify.MinRequestInterval == 0 {
		cfg.Shopify.MinRequestInterval = 600 * time.Millisecond
	}
	if cfg.Shopify.UpdatePause == 0 {
		cfg.Shopify.UpdatePause = 600 * time.Millisecond
	}
	if cfg.Shopify.Timeout == 0 {
		cfg.Shopify.Timeout = 30 * time.Second
	}
	if cfg.Report.Dir == "" {
		cfg.Report.Dir = "./csv_reports"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "reports/"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "shopsync"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be positive")
	}
	if c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler.interval must be at least 1m, got %s", c.Scheduler.Interval)
	}
	if c.Shopify.TokenKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.Shopify.TokenKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("shopify.token_key must be 32 bytes of standard base64")
		}
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}

	if c.App.Env == "production" {
		if c.Supplier.Endpoint == "" || c.Supplier.Username == "" || c.Supplier.Password == "" {
			return fmt.Errorf("supplier.endpoint, supplier.username and supplier.password are required in production")
		}
		if c.Shopify.ClientID == "" || c.Shopify.ClientSecret == "" {
			return fmt.Errorf("shopify.client_id and shopify.client_secret are required in production")
		}
		if c.Shopify.TokenKey == "" {
			return fmt.Errorf("shopify.token_key is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if !strings.HasPrefix(c.App.PublicURL, "https://") {
			return fmt.Errorf("app.public_url must use https in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RedirectURL returns the OAuth callback URL derived from the public URL
func (a *AppConfig) RedirectURL() string {
	return strings.TrimSuffix(a.PublicURL, "/") + "/auth/callback"
}
