// ABOUTME: Cache interface shared by the memory and Redis backends
// ABOUTME: Values are opaque byte slices with a backend-wide TTL

package cache

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache closed")

// Cache stores byte values by key for a bounded time.
type Cache interface {
	// Get returns the value and true on a hit, nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	Close() error
}
