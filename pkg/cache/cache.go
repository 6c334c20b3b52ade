// Package cache provides an in-process key/value store with per-entry expiry.
//
// Entries are dropped lazily when an expired key is read and eagerly by a
// background sweep. The cache makes no attempt at coherence with the backing
// store: callers accept staleness up to the TTL and delete keys they know to
// be outdated.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultSweepInterval is used when no WithSweepInterval option is given.
const DefaultSweepInterval = time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

type options struct {
	sweepInterval time.Duration
	now           func() time.Time
	metrics       *Metrics
	name          string
}

// Option customizes a Cache.
type Option func(*options)

// WithSweepInterval sets how often expired entries are purged.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweepInterval = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics reports hits, misses and evictions under the given cache name.
func WithMetrics(m *Metrics, name string) Option {
	return func(o *options) {
		o.metrics = m
		o.name = name
	}
}

// Cache is a string-keyed TTL cache safe for concurrent use.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	opts    options

	stop      chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a cache whose entries live for ttl unless SetWithTTL says
// otherwise. The sweep goroutine exits when ctx is cancelled or Close is
// called.
func New[V any](ctx context.Context, ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{sweepInterval: DefaultSweepInterval, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		opts:    o,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.sweepLoop(ctx)
	return c
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key for ttl.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.opts.now().Add(ttl)}
	c.mu.Unlock()
}

// Get returns the value for key. An expired entry is evicted and reported as
// a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		c.opts.metrics.miss(c.opts.name)
		return zero, false
	}

	if !c.opts.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the key.
		if cur, still := c.entries[key]; still && !c.opts.now().Before(cur.expiresAt) {
			delete(c.entries, key)
			c.opts.metrics.evict(c.opts.name, 1)
		}
		c.mu.Unlock()
		c.opts.metrics.miss(c.opts.name)
		return zero, false
	}

	c.opts.metrics.hit(c.opts.name)
	return e.value, true
}

// GetOrLoad returns the cached value for key or calls load and caches its
// result. Load errors are returned and nothing is cached.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (c *Cache[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweep goroutine and waits for it to exit. It is safe to
// call more than once.
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Cache[V]) sweepLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.opts.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep removes all expired entries.
func (c *Cache[V]) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.now()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	c.opts.metrics.evict(c.opts.name, n)
	return n
}
