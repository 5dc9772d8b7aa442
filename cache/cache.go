package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or already expired.
	ErrNotFound = errors.New("cache: key not found")

	// ErrBadPattern is returned by DeleteMatching when the expression does
	// not compile as a regular expression.
	ErrBadPattern = errors.New("cache: invalid match pattern")

	// ErrClosed is returned by operations on a store after Close.
	ErrClosed = errors.New("cache: store is closed")
)

// Store represents a TTL-based cache abstraction that can be backed by
// memory, Redis, or any other KV store. Implementations are safe for
// concurrent use.
//
// A ttl <= 0 passed to Set means "use the store's configured default TTL".
// Expiry and capacity eviction are normal operation, not errors: an expired
// key simply reports ErrNotFound on the next read.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for the given ttl, replacing any
	// previous value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Has reports whether key currently holds an unexpired value.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes key. It returns ErrNotFound if the key was absent.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix and returns the
	// number of keys removed. It is the primary bulk-invalidation call.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// DeleteMatching removes every key matching the regular expression
	// expr and returns the number of keys removed. It returns
	// ErrBadPattern for an expression that does not compile. Prefer
	// DeletePrefix; this is the escape hatch for irregular key shapes.
	DeleteMatching(ctx context.Context, expr string) (int, error)

	// Clear removes all keys.
	Clear(ctx context.Context) error

	// Len returns the number of keys currently stored, expired entries
	// that have not been swept included.
	Len(ctx context.Context) (int, error)

	// Keys returns a snapshot of all stored keys.
	Keys(ctx context.Context) ([]string, error)

	// Ping verifies the store is reachable and serving.
	Ping(ctx context.Context) error

	// Stats reports key count, memory footprint, and hit rate.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the store's resources. Further calls on the store
	// return ErrClosed.
	Close() error
}

// Stats is a point-in-time snapshot of a store's health counters.
type Stats struct {
	Keys        int     `json:"totalKeys"`
	MemoryBytes int64   `json:"memoryUsage"`
	HitRate     float64 `json:"hitRate"`
}

// HitRate computes hits/(hits+misses), or 0 when no reads happened yet.
func HitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
