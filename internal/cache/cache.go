// Package cache is the shared result cache: bounded by entry count, evicted
// least-recently-used first, with a per-entry TTL checked lazily on lookup.
package cache

import (
	"sync"
	"time"

	"github.com/bassosimone/runtimex"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/starford/gopher-mcp/internal/models"
)

// Store is the contract the fetchers depend on.
type Store interface {
	// Get returns the result stored under key unless absent or expired.
	Get(key string) (models.Result, bool)
	// Put stores r under key for ttl. Non-cacheable results are ignored.
	Put(key string, r models.Result, ttl time.Duration)
}

type entry struct {
	value    models.Result
	storedAt time.Time
	expires  time.Time
}

// LRU is a concurrency-safe Store. Entries are never mutated after insert;
// Put replaces the whole entry.
type LRU struct {
	mu   sync.Mutex
	lru  *simplelru.LRU[string, entry]
	size int
	now  func() time.Time
}

// Option configures an LRU.
type Option func(*LRU)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *LRU) { c.now = now }
}

// New returns an LRU holding at most capacity entries. capacity must be positive.
func New(capacity int, opts ...Option) *LRU {
	runtimex.Assert(capacity > 0)
	c := &LRU{
		lru:  runtimex.PanicOnError1(simplelru.NewLRU[string, entry](capacity, nil)),
		size: capacity,
		now:  time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get implements Store. An expired entry is removed and reported absent.
func (c *LRU) Get(key string) (models.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Put implements Store. When the cache is full, expired entries are dropped
// before any live entry is evicted.
func (c *LRU) Put(key string, r models.Result, ttl time.Duration) {
	if r == nil || ttl <= 0 || !models.IsCacheable(r) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lru.Contains(key) && c.lru.Len() >= c.size {
		c.sweepLocked(now)
	}
	c.lru.Add(key, entry{value: r, storedAt: now, expires: now.Add(ttl)})
}

// Len returns the number of stored entries, expired or not.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge drops every entry.
func (c *LRU) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

func (c *LRU) sweepLocked(now time.Time) {
	for _, k := range c.lru.Keys() {
		if e, ok := c.lru.Peek(k); ok && !now.Before(e.expires) {
			c.lru.Remove(k)
		}
	}
}

// Disabled is a Store that never holds anything.
type Disabled struct{}

// Get always misses.
func (Disabled) Get(string) (models.Result, bool) { return nil, false }

// Put does nothing.
func (Disabled) Put(string, models.Result, time.Duration) {}

var (
	_ Store = (*LRU)(nil)
	_ Store = Disabled{}
)
