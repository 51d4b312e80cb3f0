package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// lockEntry represents a held lock with expiration
type lockEntry struct {
	token     string
	expiresAt time.Time
}

// InMemoryRunLock implements RunLock using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryRunLock struct {
	mu      sync.Mutex
	entries map[string]lockEntry
	now     func() time.Time
}

// NewInMemoryRunLock creates a new in-memory run lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		entries: make(map[string]lockEntry),
		now:     time.Now,
	}
}

// TryLock acquires key unless a live entry exists
func (l *InMemoryRunLock) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, exists := l.entries[key]; exists && now.Before(e.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.entries[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock releases key when token matches the live entry
func (l *InMemoryRunLock) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[key]
	if !exists || e.token != token || !l.now().Before(e.expiresAt) {
		return ErrLockNotHeld
	}
	delete(l.entries, key)
	return nil
}

// Close is a no-op
func (l *InMemoryRunLock) Close() error {
	return nil
}

// Size returns the number of entries, expired ones included (for testing/monitoring)
func (l *InMemoryRunLock) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Ensure InMemoryRunLock implements RunLock
var _ RunLock = (*InMemoryRunLock)(nil)
