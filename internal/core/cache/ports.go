package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache defines the key/value operations the cart and idempotency stores rely on.
// This is a port that can be implemented by different cache providers.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the specified TTL. TTL of 0 means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores the value only if the key does not exist yet.
	// Reports whether the value was written.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Ping checks if the cache service is reachable.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}
