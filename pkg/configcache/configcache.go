package configcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL bounds how long a configuration snapshot is served without
// consulting the backing store.
const DefaultTTL = 300 * time.Second

// FetchFunc resolves a cache miss against the backing store. The second
// return value reports whether the key exists; a false result is cached too,
// so repeated lookups of an unknown key do not repeatedly hit the store.
type FetchFunc[V any] func(ctx context.Context) (V, bool, error)

// entry wraps the fetched value together with its presence marker, which is
// what lets a "not found" answer live in the cache alongside real values.
type entry[V any] struct {
	value V
	found bool
}

// Cache is a process-local TTL cache for externally-stored configuration.
// It is safe for concurrent use; a stale read during a concurrent refresh is
// acceptable, bounded by the TTL window. Duplicate concurrent fetches for the
// same key may occur under pressure; the cache is best-effort, not a
// single-flight barrier.
type Cache[V any] struct {
	items  *ttlcache.Cache[string, entry[V]]
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures cache creation.
type Option func(*options)

type options struct {
	ttl      time.Duration
	capacity uint64
}

// WithTTL overrides the default 300s entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithCapacity bounds the number of cached entries; zero means unbounded.
func WithCapacity(capacity uint64) Option {
	return func(o *options) {
		o.capacity = capacity
	}
}

// New creates a cache and starts its background expiration loop. Call Close
// when the cache is no longer needed.
func New[V any](opts ...Option) *Cache[V] {
	o := &options{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(o)
	}

	cacheOpts := []ttlcache.Option[string, entry[V]]{
		ttlcache.WithTTL[string, entry[V]](o.ttl),
		ttlcache.WithDisableTouchOnHit[string, entry[V]](),
	}
	if o.capacity > 0 {
		cacheOpts = append(cacheOpts, ttlcache.WithCapacity[string, entry[V]](o.capacity))
	}

	items := ttlcache.New(cacheOpts...)
	go items.Start()

	return &Cache[V]{items: items}
}

// GetOrFetch returns the cached value for key, fetching it on a miss. The
// boolean reports whether the key exists in the backing store; the "does not
// exist" answer is cached with the same TTL as found values. Fetch errors are
// returned to the caller and never cached, so a transient store failure does
// not poison the cache for the TTL window.
func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, fetch FetchFunc[V]) (V, bool, error) {
	if item := c.items.Get(key); item != nil {
		c.hits.Add(1)
		e := item.Value()
		return e.value, e.found, nil
	}

	c.misses.Add(1)

	value, found, err := fetch(ctx)
	if err != nil {
		var zero V
		return zero, false, err
	}

	c.items.Set(key, entry[V]{value: value, found: found}, ttlcache.DefaultTTL)
	return value, found, nil
}

// Invalidate drops the entry for key so the next lookup refetches.
func (c *Cache[V]) Invalidate(key string) {
	c.items.Delete(key)
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits   int64
	Misses int64
}

// HitRate returns the fraction of lookups served from cache, or zero before
// any lookup happened.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns the lookup counters accumulated since creation.
func (c *Cache[V]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// HitRate is a convenience shortcut for Stats().HitRate().
func (c *Cache[V]) HitRate() float64 {
	return c.Stats().HitRate()
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	return c.items.Len()
}

// Close stops the background expiration loop.
func (c *Cache[V]) Close() {
	c.items.Stop()
}
