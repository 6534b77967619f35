package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/starford/gopher-mcp/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func text(s string) models.Result {
	return models.TextResult{Charset: "utf-8", Bytes: len(s), Text: s}
}

// An entry is served strictly before storedAt+ttl and never at or after it.
func TestLRU_TTLBoundary(t *testing.T) {
	clock := newClock()
	c := New(10, WithClock(clock.Now))
	c.Put("k", text("v"), time.Minute)

	clock.Advance(time.Minute - time.Nanosecond)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got.(models.TextResult).Text)

	clock.Advance(time.Nanosecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is removed on lookup")
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, WithClock(newClock().Now))
	c.Put("a", text("a"), time.Hour)
	c.Put("b", text("b"), time.Hour)

	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", text("c"), time.Hour)

	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

// When full, expired entries go before any live entry.
func TestLRU_ExpiredEvictedBeforeLive(t *testing.T) {
	clock := newClock()
	c := New(2, WithClock(clock.Now))
	c.Put("live", text("live"), time.Hour)
	c.Put("short", text("short"), time.Second)

	// live is now least recently used, short is expired.
	clock.Advance(2 * time.Second)
	c.Put("new", text("new"), time.Hour)

	_, ok := c.Get("live")
	assert.True(t, ok)
	_, ok = c.Get("new")
	assert.True(t, ok)
}

func TestLRU_ReplaceOnWrite(t *testing.T) {
	c := New(2)
	c.Put("k", text("one"), time.Hour)
	c.Put("k", text("two"), time.Hour)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "two", got.(models.TextResult).Text)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_IgnoresNonCacheable(t *testing.T) {
	c := New(4)
	c.Put("err", models.ErrorResult{}, time.Hour)
	c.Put("redirect", models.RedirectResult{Status: 30}, time.Hour)
	c.Put("failure", models.FailureResult{Status: 51}, time.Hour)
	c.Put("zero-ttl", text("x"), 0)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_Purge(t *testing.T) {
	c := New(4)
	c.Put("a", text("a"), time.Hour)
	c.Purge()
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestDisabled(t *testing.T) {
	var s Store = Disabled{}
	s.Put("k", text("v"), time.Hour)
	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestLRU_ConcurrentAccess(t *testing.T) {
	c := New(16)
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", j%32)
				c.Put(key, text(key), time.Hour)
				if r, ok := c.Get(key); ok && r.(models.TextResult).Text != key {
					return fmt.Errorf("key %s returned %q", key, r.(models.TextResult).Text)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.LessOrEqual(t, c.Len(), 16)
}
