package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shopsync/backend/internal/infrastructure/config"
)

const defaultLockPrefix = "shopsync:run-lock:"

// unlockScript deletes the key only while it still carries the caller's token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements RunLock using Redis.
// This is suitable for distributed deployments where multiple instances
// share the same shops.
type RedisRunLock struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRunLock connects to Redis and creates a lock
func NewRedisRunLock(cfg config.RedisConfig) (*RedisRunLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRunLockWithClient(client, ""), nil
}

// NewRedisRunLockWithClient creates a lock with an existing Redis client
func NewRedisRunLockWithClient(client redis.UniversalClient, keyPrefix string) *RedisRunLock {
	if keyPrefix == "" {
		keyPrefix = defaultLockPrefix
	}
	return &RedisRunLock{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// TryLock uses SET NX with TTL for atomic acquisition
func (l *RedisRunLock) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock releases key through a compare-and-delete script
func (l *RedisRunLock) Unlock(ctx context.Context, key, token string) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Close closes the Redis client
func (l *RedisRunLock) Close() error {
	return l.client.Close()
}

// Ensure RedisRunLock implements RunLock
var _ RunLock = (*RedisRunLock)(nil)
