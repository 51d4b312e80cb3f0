// Package cache provides the per-tenant run lock used by the sync scheduler.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotHeld is returned when releasing a lock owned by someone else or already expired
var ErrLockNotHeld = errors.New("cache: lock not held")

// RunLock guards a key against concurrent holders.
// A holder that crashes loses the lock when its TTL elapses.
type RunLock interface {
	// TryLock acquires key for ttl. ok is false when another holder has it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Unlock releases key if token still owns it
	Unlock(ctx context.Context, key, token string) error
	// Close releases resources
	Close() error
}
