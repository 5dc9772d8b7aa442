package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerOptions tunes the circuit protecting a remote-backed Store.
type BreakerOptions struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	MinRequests      uint32
	FailureThreshold float64
	// Logger receives state transitions. The zero value logs nothing.
	Logger zerolog.Logger
}

func (o BreakerOptions) withDefaults() BreakerOptions {
	if o.Name == "" {
		o.Name = "cache"
	}
	if o.MaxRequests == 0 {
		o.MaxRequests = 3
	}
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MinRequests == 0 {
		o.MinRequests = 5
	}
	if o.FailureThreshold <= 0 || o.FailureThreshold > 1 {
		o.FailureThreshold = 0.6
	}
	return o
}

// BreakerStore wraps a Store with a circuit breaker so a struggling backend
// fails fast instead of holding every caller to its dial timeout. A miss and
// a bad pattern are normal responses and never trip the circuit.
type BreakerStore struct {
	store Store
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore decorates store with a circuit breaker.
func NewBreakerStore(store Store, opts BreakerOptions) *BreakerStore {
	cfg := opts.withDefaults()
	log := cfg.Logger
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadPattern)
		},
	})
	return &BreakerStore{store: store, cb: cb}
}

// State reports the current circuit state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	_, err := b.cb.Execute(func() (any, error) {
		v, err := b.store.Get(ctx, key)
		payload = v
		return nil, err
	})
	return payload, err
}

func (b *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.store.Set(ctx, key, value, ttl)
	})
	return err
}

func (b *BreakerStore) Has(ctx context.Context, key string) (bool, error) {
	var ok bool
	_, err := b.cb.Execute(func() (any, error) {
		v, err := b.store.Has(ctx, key)
		ok = v
		return nil, err
	})
	return ok, err
}

func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.store.Delete(ctx, key)
	})
	return err
}

func (b *BreakerStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	_, err := b.cb.Execute(func() (any, error) {
		v, err := b.store.DeletePrefix(ctx, prefix)
		n = v
		return nil, err
	})
	return n, err
}

func (b *BreakerStore) DeleteMatching(ctx context.Context, expr string) (int, error) {
	var n int
	_, err := b.cb.Execute(func() (any, error) {
		v, err := b.store.DeleteMatching(ctx, expr)
		n = v
		return nil, err
	})
	return n, err
}

func (b *BreakerStore) Clear(ctx context.Context) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.store.Clear(ctx)
	})
	return err
}

func (b *BreakerStore) Len(ctx context.Context) (int, error) {
	var n int
	_, err := b.cb.Execute(func() (any, error) {
		v, err := b.store.Len(ctx)
		n = v
		return nil, err
	})
	return n, err
}

func (b *BreakerStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	_, err := b.cb.Execute(func() (any, error) {
		v, err := b.store.Keys(ctx)
		keys = v
		return nil, err
	})
	return keys, err
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.store.Ping(ctx)
	})
	return err
}

func (b *BreakerStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	_, err := b.cb.Execute(func() (any, error) {
		v, err := b.store.Stats(ctx)
		stats = v
		return nil, err
	})
	return stats, err
}

// Close releases the wrapped store. It bypasses the circuit so shutdown
// always reaches the backend.
func (b *BreakerStore) Close() error {
	return b.store.Close()
}
