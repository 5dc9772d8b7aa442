package polls

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EgejuruProsper/alx-polly-sub001/cache"
	"github.com/EgejuruProsper/alx-polly-sub001/metrics"
)

const (
	pollKeyPrefix  = "poll:"
	pollsKeyPrefix = "polls:"
	userKeyPrefix  = "user:"
)

// CacheOptions tunes per-namespace TTLs for the domain cache.
type CacheOptions struct {
	PollTTL time.Duration
	ListTTL time.Duration
	UserTTL time.Duration
	Logger  zerolog.Logger
}

func (o CacheOptions) withDefaults() CacheOptions {
	if o.PollTTL <= 0 {
		o.PollTTL = 5 * time.Minute
	}
	if o.ListTTL <= 0 {
		o.ListTTL = 2 * time.Minute
	}
	if o.UserTTL <= 0 {
		o.UserTTL = 10 * time.Minute
	}
	return o
}

// Cache wraps a cache.Store with the application's key namespaces: poll:<id>
// for single polls, polls:<filter> for listings, user:<id> for accounts.
//
// Backend failures never reach callers. A failed read is a miss, a failed
// write a no-op; both are logged and counted so a dead backend is visible
// without ever failing a request.
type Cache struct {
	store cache.Store
	opts  CacheOptions
	log   zerolog.Logger
}

// NewCache builds the domain facade over any cache.Store.
func NewCache(store cache.Store, opts CacheOptions) *Cache {
	cfg := opts.withDefaults()
	return &Cache{store: store, opts: cfg, log: cfg.Logger}
}

// GetPoll returns a cached poll, if present.
func (c *Cache) GetPoll(ctx context.Context, id uuid.UUID) (Poll, bool) {
	var poll Poll
	ok := c.get(ctx, pollKey(id), "poll", &poll)
	return poll, ok
}

// SetPoll caches a poll under poll:<id>.
func (c *Cache) SetPoll(ctx context.Context, poll Poll) {
	c.set(ctx, pollKey(poll.ID), poll, c.opts.PollTTL)
}

// GetPolls returns a cached listing for the filter, if present. A cached
// empty result is a hit.
func (c *Cache) GetPolls(ctx context.Context, filter Filter) ([]Poll, bool) {
	var list []Poll
	ok := c.get(ctx, filter.CacheKey(), "polls", &list)
	return list, ok
}

// SetPolls caches a listing under the filter's canonical key.
func (c *Cache) SetPolls(ctx context.Context, filter Filter, list []Poll) {
	c.set(ctx, filter.CacheKey(), list, c.opts.ListTTL)
}

// GetUser decodes a cached account record into dst.
func (c *Cache) GetUser(ctx context.Context, id uuid.UUID, dst any) bool {
	return c.get(ctx, userKey(id), "user", dst)
}

// SetUser caches an account record under user:<id>.
func (c *Cache) SetUser(ctx context.Context, id uuid.UUID, user any) {
	c.set(ctx, userKey(id), user, c.opts.UserTTL)
}

// InvalidateUser drops the cached account record.
func (c *Cache) InvalidateUser(ctx context.Context, id uuid.UUID) {
	c.delete(ctx, userKey(id), "user")
}

// InvalidatePoll drops the poll's own entry and every cached listing. Any
// listing could contain the stale poll, so the whole polls: namespace goes.
func (c *Cache) InvalidatePoll(ctx context.Context, id uuid.UUID) {
	c.delete(ctx, pollKey(id), "poll")
	c.deletePrefix(ctx, pollsKeyPrefix, "polls")
}

// InvalidatePollLists drops every cached listing but leaves poll:<id>
// entries alone. Used when a new poll appears and existing entries are still
// accurate.
func (c *Cache) InvalidatePollLists(ctx context.Context) {
	c.deletePrefix(ctx, pollsKeyPrefix, "polls")
}

// InvalidateAllPolls drops both poll namespaces.
func (c *Cache) InvalidateAllPolls(ctx context.Context) {
	c.deletePrefix(ctx, pollKeyPrefix, "poll")
	c.deletePrefix(ctx, pollsKeyPrefix, "polls")
}

// GetWithKey decodes the value under base:id into dst. Escape hatch for
// callers caching outside the poll/user namespaces.
func (c *Cache) GetWithKey(ctx context.Context, base, id string, dst any) bool {
	return c.get(ctx, joinKey(base, id), "other", dst)
}

// SetWithKey caches v under base:id. A non-positive ttl uses the backend's
// default.
func (c *Cache) SetWithKey(ctx context.Context, base, id string, v any, ttl time.Duration) {
	c.set(ctx, joinKey(base, id), v, ttl)
}

// DeleteWithKey drops the value under base:id.
func (c *Cache) DeleteWithKey(ctx context.Context, base, id string) {
	c.delete(ctx, joinKey(base, id), "other")
}

// DeleteMatching removes every key matching the regular expression and
// returns how many went. An invalid pattern is a programming error and is
// returned; backend failures degrade to zero removals.
func (c *Cache) DeleteMatching(ctx context.Context, expr string) (int, error) {
	n, err := c.store.DeleteMatching(ctx, expr)
	if err != nil {
		if errors.Is(err, cache.ErrBadPattern) {
			return 0, err
		}
		c.degraded("delete-matching", expr, err)
		return 0, nil
	}
	metrics.CacheInvalidations.WithLabelValues("other").Inc()
	return n, nil
}

// Ping reports backend health. Unlike reads and writes this returns the
// truth, for health endpoints.
func (c *Cache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Stats reports the backend's counters.
func (c *Cache) Stats(ctx context.Context) (cache.Stats, error) {
	return c.store.Stats(ctx)
}

func (c *Cache) get(ctx context.Context, key, namespace string, dst any) bool {
	payload, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.degraded("get", key, err)
		}
		metrics.RecordCacheRead(namespace, false)
		return false
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		// An undecodable payload is useless; drop it and report a miss.
		c.degraded("decode", key, err)
		_ = c.store.Delete(ctx, key)
		metrics.RecordCacheRead(namespace, false)
		return false
	}
	metrics.RecordCacheRead(namespace, true)
	return true
}

func (c *Cache) set(ctx context.Context, key string, v any, ttl time.Duration) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.degraded("encode", key, err)
		return
	}
	if err := c.store.Set(ctx, key, payload, ttl); err != nil {
		c.degraded("set", key, err)
	}
}

func (c *Cache) delete(ctx context.Context, key, namespace string) {
	if err := c.store.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrNotFound) {
		c.degraded("delete", key, err)
	}
	metrics.CacheInvalidations.WithLabelValues(namespace).Inc()
}

func (c *Cache) deletePrefix(ctx context.Context, prefix, namespace string) {
	if _, err := c.store.DeletePrefix(ctx, prefix); err != nil {
		c.degraded("delete-prefix", prefix, err)
	}
	metrics.CacheInvalidations.WithLabelValues(namespace).Inc()
}

func (c *Cache) degraded(op, key string, err error) {
	metrics.CacheErrors.WithLabelValues(op).Inc()
	c.log.Warn().Str("op", op).Str("key", key).Err(err).Msg("cache degraded")
}

func pollKey(id uuid.UUID) string { return pollKeyPrefix + id.String() }

func userKey(id uuid.UUID) string { return userKeyPrefix + id.String() }

func joinKey(base, id string) string { return fmt.Sprintf("%s:%s", base, id) }
