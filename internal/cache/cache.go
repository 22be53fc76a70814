package cache

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Configuration errors, surfaced at construction time
var (
	ErrInvalidMaxSize = errors.New("cache max size must be positive")
	ErrInvalidTTL     = errors.New("cache TTL must be positive")
)

// entry wraps a stored value with its insertion time for lazy TTL expiry.
type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// Cache is a bounded string-keyed cache combining LRU capacity eviction with
// TTL-based expiry. Expiry is discovered lazily on access; there is no
// background sweep, so memory is bounded by MaxSize, not by TTL.
//
// All operations are safe for concurrent use; a single mutex guards the map
// and recency structure.
type Cache[V any] struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *entry[V]]
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock overrides the time source, for deterministic expiry tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache holding at most maxSize live entries, each expiring ttl
// after its last insertion. Non-positive maxSize or ttl is a configuration
// error.
func New[V any](maxSize int, ttl time.Duration, opts ...Option[V]) (*Cache[V], error) {
	if maxSize <= 0 {
		return nil, ErrInvalidMaxSize
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	entries, err := lru.New[string, *entry[V]](maxSize)
	if err != nil {
		return nil, err
	}

	c := &Cache[V]{
		entries: entries,
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get returns the live value for key. Expired entries are purged and counted
// as misses. The returned bool distinguishes absence from a stored zero
// value: caching a nil/zero value is valid and retrievable.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		c.misses++
		return zero, false
	}

	if c.expired(e) {
		c.entries.Remove(key)
		c.misses++
		return zero, false
	}

	c.hits++
	return e.value, true
}

// Set inserts or overwrites key. The entry's age resets to zero and it
// becomes most-recently-used. Inserting a new key beyond capacity evicts the
// least-recently-used entry first.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if evicted := c.entries.Add(key, &entry[V]{value: value, insertedAt: c.now()}); evicted {
		c.evictions++
	}
}

// Has reports whether key holds a live entry. Like Get it refreshes the
// entry's recency and purges it if expired, but it is an existence probe and
// never moves the hit/miss counters.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		return false
	}

	if c.expired(e) {
		c.entries.Remove(key)
		return false
	}

	return true
}

// Delete removes key if present. Deleting a missing key is a no-op.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Remove(key)
}

// Clear removes every entry. Counters are unaffected; use ResetStats for
// those.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Purge()
}

// Len returns the number of stored entries, including any whose TTL has
// lapsed but that have not yet been discovered by an access.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries.Len()
}

// Stats contains cache instrumentation counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	MaxSize   int
	HitRate   float64
}

// GetStats returns a snapshot of the counters. HitRate is 0 when no requests
// have occurred.
func (c *Cache[V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.entries.Len(),
		MaxSize:   c.maxSize,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// ResetStats zeroes the counters without touching stored entries.
func (c *Cache[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = 0
	c.misses = 0
	c.evictions = 0
}

// expired reports whether the entry's age meets or exceeds the TTL as of the
// current access.
func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.now().Sub(e.insertedAt) >= c.ttl
}
