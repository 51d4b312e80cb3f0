package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/infrastructure/config"
)

// RunLockFactory creates run locks based on configuration
type RunLockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RunLockFactoryOption is a functional option for configuring the factory
type RunLockFactoryOption func(*RunLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory lock when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRunLockFactory creates a new factory
func NewRunLockFactory(cfg config.RedisConfig, opts ...RunLockFactoryOption) *RunLockFactory {
	f := &RunLockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateLock returns a Redis lock when Redis is enabled and reachable.
// Otherwise it falls back to an in-memory lock if allowed.
func (f *RunLockFactory) CreateLock() (RunLock, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory run lock")
		return NewInMemoryRunLock(), nil
	}

	lock, err := NewRedisRunLock(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis run lock", zap.String("addr", f.redisConfig.Addr()))
		return lock, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for run lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
		"Separate instances may sync the same shop concurrently.",
		zap.Error(err),
	)
	return NewInMemoryRunLock(), nil
}
