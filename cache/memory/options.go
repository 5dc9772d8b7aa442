package memory

import (
	"time"

	"github.com/rs/zerolog"
)

// Options controls capacity, expiry, and sweep cadence of the in-process store.
type Options struct {
	// MaxSize caps the number of entries. Inserting past the cap evicts the
	// oldest-inserted entry first.
	MaxSize int

	// DefaultTTL applies when Set is called with a non-positive ttl.
	DefaultTTL time.Duration

	// CleanupInterval is the period of the background expiry sweep.
	CleanupInterval time.Duration

	// OnEvict, when set, runs after every capacity eviction with the evicted
	// key. It is called with the store lock held and must not call back into
	// the store.
	OnEvict func(key string)

	// Logger receives eviction and sweep events. The zero value logs nothing.
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxSize <= 0 {
		o.MaxSize = 1000
	}
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = 5 * time.Minute
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = time.Minute
	}
	return o
}
