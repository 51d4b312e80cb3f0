package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "shopsync", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8000", cfg.App.Port)
		assert.Equal(t, "http://localhost:8000", cfg.App.PublicURL)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "shopsync", cfg.Database.DBName)
		assert.Equal(t, 10, cfg.Database.MaxOpenConns)
		assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowQueryThreshold)
		assert.Empty(t, cfg.Shopify.TokenKey)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, 2*time.Hour, cfg.Redis.LockTTL)

		assert.True(t, cfg.Scheduler.Enabled)
		assert.True(t, cfg.Scheduler.RegisterOnStartup)
		assert.Equal(t, 60*time.Minute, cfg.Scheduler.Interval)
		assert.Equal(t, 10, cfg.Scheduler.Workers)

		assert.Equal(t, 3, cfg.Supplier.DetailMaxAttempts)
		assert.Equal(t, 15*time.Second, cfg.Supplier.DetailInitialDelay)
		assert.Equal(t, "read_products,write_products,write_inventory", cfg.Shopify.Scopes)
		assert.Equal(t, "2024-01", cfg.Shopify.APIVersion)
		assert.Equal(t, 600*time.Millisecond, cfg.Shopify.MinRequestInterval)
		assert.Equal(t, 600*time.Millisecond, cfg.Shopify.UpdatePause)
		assert.Equal(t, "./csv_reports", cfg.Report.Dir)

		assert.False(t, cfg.Storage.Enabled)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, "/metrics", cfg.Metrics.Path)
		assert.Equal(t, "shopsync", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with SHOPSYNC prefix", func(t *testing.T) {
		t.Setenv("SHOPSYNC_APP_PORT", "9000")
		t.Setenv("SHOPSYNC_DATABASE_DRIVER", "sqlite")
		t.Setenv("SHOPSYNC_DATABASE_SQLITE_PATH", "/tmp/sync.db")
		t.Setenv("SHOPSYNC_SCHEDULER_INTERVAL", "30m")
		t.Setenv("SHOPSYNC_SCHEDULER_WORKERS", "4")
		t.Setenv("SHOPSYNC_SCHEDULER_ENABLED", "false")
		t.Setenv("SHOPSYNC_SHOPIFY_LOCATION_ID", "85726363936")
		t.Setenv("SHOPSYNC_SHOPIFY_CLIENT_ID", "client")
		t.Setenv("SHOPSYNC_REDIS_ENABLED", "true")
		t.Setenv("SHOPSYNC_REPORT_DIR", "/var/reports")
		t.Setenv("SHOPSYNC_DATABASE_SLOW_QUERY_THRESHOLD", "0s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "http://localhost:9000", cfg.App.PublicURL)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, "/tmp/sync.db", cfg.Database.SQLitePath)
		assert.Equal(t, 30*time.Minute, cfg.Scheduler.Interval)
		assert.Equal(t, 4, cfg.Scheduler.Workers)
		assert.False(t, cfg.Scheduler.Enabled)
		assert.Equal(t, int64(85726363936), cfg.Shopify.LocationID)
		assert.Equal(t, "client", cfg.Shopify.ClientID)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "/var/reports", cfg.Report.Dir)
		assert.Zero(t, cfg.Database.SlowQueryThreshold, "explicit zero disables slow query warnings")
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		t.Setenv("SHOPSYNC_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("SHOPSYNC_DATABASE_MAX_OPEN_CONNS", "2")
		t.Setenv("SHOPSYNC_DATABASE_MAX_IDLE_CONNS", "5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects sub-minute scheduler interval", func(t *testing.T) {
		t.Setenv("SHOPSYNC_SCHEDULER_INTERVAL", "10s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheduler.interval")
	})

	t.Run("storage requires a bucket when enabled", func(t *testing.T) {
		t.Setenv("SHOPSYNC_STORAGE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.bucket")
	})

	t.Run("rejects malformed token key", func(t *testing.T) {
		t.Setenv("SHOPSYNC_SHOPIFY_TOKEN_KEY", base64.StdEncoding.EncodeToString([]byte("sixteen byte key")))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "shopify.token_key must be 32 bytes")
	})

	t.Run("rejects sampling ratio out of range", func(t *testing.T) {
		t.Setenv("SHOPSYNC_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("SHOPSYNC_APP_ENV", "production")
		t.Setenv("SHOPSYNC_APP_PUBLIC_URL", "https://sync.example.com")
		t.Setenv("SHOPSYNC_DATABASE_PASSWORD", "secure-password")
		t.Setenv("SHOPSYNC_SUPPLIER_ENDPOINT", "https://www.powerbody.co.uk/api/soap/")
		t.Setenv("SHOPSYNC_SUPPLIER_USERNAME", "user")
		t.Setenv("SHOPSYNC_SUPPLIER_PASSWORD", "key")
		t.Setenv("SHOPSYNC_SHOPIFY_CLIENT_ID", "client")
		t.Setenv("SHOPSYNC_SHOPIFY_CLIENT_SECRET", "secret")
		t.Setenv("SHOPSYNC_SHOPIFY_TOKEN_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	}

	tests := []struct {
		name    string
		unset   string
		value   string
		wantErr string
	}{
		{"requires supplier credentials", "SHOPSYNC_SUPPLIER_PASSWORD", "", "supplier.endpoint, supplier.username and supplier.password are required"},
		{"requires shopify client secret", "SHOPSYNC_SHOPIFY_CLIENT_SECRET", "", "shopify.client_id and shopify.client_secret are required"},
		{"requires token key", "SHOPSYNC_SHOPIFY_TOKEN_KEY", "", "shopify.token_key is required in production"},
		{"requires database password", "SHOPSYNC_DATABASE_PASSWORD", "", "database.password is required in production"},
		{"requires https public url", "SHOPSYNC_APP_PUBLIC_URL", "http://sync.example.com", "app.public_url must use https"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidProductionBase(t)
			t.Setenv(tt.unset, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
		assert.Equal(t, "https://sync.example.com/auth/callback", cfg.App.RedirectURL())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", cfg.Addr())
}
