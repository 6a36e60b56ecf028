// Package cache provides the key-value backend the processing state store
// is built on. Values are opaque bytes; expiry is the backend's concern.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a generic get/set/delete key-value store with TTL support.
type Cache interface {
	// Get returns the value for key. The second result is false when the
	// key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. It returns true when a value was removed.
	Delete(ctx context.Context, key string) (bool, error)

	Close() error
}

// Backend names supported by New. Unknown values fail at construction
// rather than falling back to a default.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// New builds the configured cache backend.
func New(ctx context.Context, backend, redisURL string) (Cache, error) {
	switch backend {
	case BackendRedis:
		return NewRedisCache(ctx, redisURL)
	case BackendMemory:
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", backend)
	}
}
