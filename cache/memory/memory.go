package memory

import (
	"container/list"
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EgejuruProsper/alx-polly-sub001/cache"
)

// Store implements cache.Store with an in-process bounded map.
//
// Entries expire a fixed duration after they were written. Expired entries
// are dropped lazily on read and in bulk by a background sweep. When the
// store is full, inserting a new key evicts the entry that was first
// inserted longest ago, whether or not it has expired; re-setting a tracked
// key refreshes its value and expiry but keeps its original eviction slot.
type Store struct {
	opts Options

	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List
	closed  bool

	hits   atomic.Uint64
	misses atomic.Uint64

	now  func() time.Time
	stop chan struct{}
	done chan struct{}
}

type entry struct {
	key        string
	value      []byte
	insertedAt time.Time
	ttl        time.Duration
}

// NewStore builds an in-process cache store and starts its sweep goroutine.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	s := &Store{
		opts:    cfg,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

// WithClock overrides the time source (useful for tests).
func (s *Store) WithClock(now func() time.Time) {
	if now == nil {
		return
	}
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, cache.ErrClosed
	}
	el, ok := s.entries[key]
	if !ok {
		s.misses.Add(1)
		return nil, cache.ErrNotFound
	}
	ent := el.Value.(*entry)
	if expired(ent, s.now()) {
		s.removeElement(el)
		s.misses.Add(1)
		return nil, cache.ErrNotFound
	}
	s.hits.Add(1)
	return cloneBytes(ent.value), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cache.ErrClosed
	}
	now := s.now()
	if el, ok := s.entries[key]; ok {
		ent := el.Value.(*entry)
		ent.value = cloneBytes(value)
		ent.insertedAt = now
		ent.ttl = ttl
		return nil
	}
	if len(s.entries) >= s.opts.MaxSize {
		s.evictOldest()
	}
	el := s.order.PushBack(&entry{
		key:        key,
		value:      cloneBytes(value),
		insertedAt: now,
		ttl:        ttl,
	})
	s.entries[key] = el
	return nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, cache.ErrClosed
	}
	el, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if expired(el.Value.(*entry), s.now()) {
		s.removeElement(el)
		return false, nil
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cache.ErrClosed
	}
	el, ok := s.entries[key]
	if !ok {
		return cache.ErrNotFound
	}
	s.removeElement(el)
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, cache.ErrClosed
	}
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if strings.HasPrefix(el.Value.(*entry).key, prefix) {
			s.removeElement(el)
			removed++
		}
		el = next
	}
	return removed, nil
}

func (s *Store) DeleteMatching(ctx context.Context, expr string) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", cache.ErrBadPattern, expr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, cache.ErrClosed
	}
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if re.MatchString(el.Value.(*entry).key) {
			s.removeElement(el)
			removed++
		}
		el = next
	}
	return removed, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cache.ErrClosed
	}
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	return nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, cache.ErrClosed
	}
	return len(s.entries), nil
}

// Keys returns the stored keys in first-insertion order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cache.ErrClosed
	}
	keys := make([]string, 0, len(s.entries))
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry).key)
	}
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return cache.ErrClosed
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (cache.Stats, error) {
	if err := ctxErr(ctx); err != nil {
		return cache.Stats{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return cache.Stats{}, cache.ErrClosed
	}
	var footprint int64
	for el := s.order.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*entry)
		footprint += int64(len(ent.key) + len(ent.value))
	}
	return cache.Stats{
		Keys:        len(s.entries),
		MemoryBytes: footprint,
		HitRate:     cache.HitRate(s.hits.Load(), s.misses.Load()),
	}, nil
}

// Cleanup removes every expired entry immediately and returns how many were
// dropped. The background sweep calls it once per CleanupInterval.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	now := s.now()
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if expired(el.Value.(*entry), now) {
			s.removeElement(el)
			removed++
		}
		el = next
	}
	if removed > 0 {
		s.opts.Logger.Debug().Int("removed", removed).Msg("cache sweep dropped expired entries")
	}
	return removed
}

// Close stops the sweep goroutine and drops all entries. It is safe to call
// more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	return nil
}

func (s *Store) janitor() {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stop:
			return
		}
	}
}

// evictOldest drops the entry at the front of the insertion queue. Callers
// must hold the write lock.
func (s *Store) evictOldest() {
	el := s.order.Front()
	if el == nil {
		return
	}
	key := el.Value.(*entry).key
	s.removeElement(el)
	s.opts.Logger.Debug().Str("key", key).Msg("cache evicted oldest entry")
	if s.opts.OnEvict != nil {
		s.opts.OnEvict(key)
	}
}

func (s *Store) removeElement(el *list.Element) {
	s.order.Remove(el)
	delete(s.entries, el.Value.(*entry).key)
}

func expired(ent *entry, now time.Time) bool {
	return now.Sub(ent.insertedAt) > ent.ttl
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
