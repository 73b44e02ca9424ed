package views

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housebot/internal/transport"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*Cache[string], *clock) {
	clk := &clock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	c := New[string](ttl)
	c.now = clk.now
	return c, clk
}

func TestCache_TTL(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(15 * time.Minute)
	ref := transport.MessageRef{ChatID: 1, MessageID: 10}

	c.Put(ref, "weeks 0-4")
	v, ok := c.Get(ref)
	require.True(t, ok)
	assert.Equal(t, "weeks 0-4", v)

	clk.advance(14 * time.Minute)
	assert.True(t, c.Valid(ref))

	clk.advance(time.Minute)
	assert.False(t, c.Valid(ref), "expires exactly at the TTL")
	assert.Equal(t, 1, c.Len(), "Get does not delete")

	assert.Equal(t, 1, c.Sweep(clk.now()))
	assert.Zero(t, c.Len())
}

func TestCache_PutRefreshes(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(time.Minute)
	ref := transport.MessageRef{ChatID: 1, MessageID: 10}
	c.Put(ref, "a")
	clk.advance(50 * time.Second)
	c.Put(ref, "b")
	clk.advance(50 * time.Second)

	v, ok := c.Get(ref)
	require.True(t, ok)
	assert.Equal(t, "b", v)
}

func TestCache_SweepKeepsFresh(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(time.Minute)
	old := transport.MessageRef{ChatID: 1, MessageID: 1}
	fresh := transport.MessageRef{ChatID: 1, MessageID: 2}
	c.Put(old, "old")
	clk.advance(45 * time.Second)
	c.Put(fresh, "fresh")
	clk.advance(30 * time.Second)

	assert.Equal(t, 1, c.Sweep(clk.now()))
	assert.True(t, c.Valid(fresh))
}

func TestCache_MaxEvictsOldest(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(time.Hour)
	c.WithMax(2)
	for i := 1; i <= 3; i++ {
		c.Put(transport.MessageRef{ChatID: 1, MessageID: i}, "v")
		clk.advance(time.Second)
	}
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Valid(transport.MessageRef{ChatID: 1, MessageID: 1}))
	assert.True(t, c.Valid(transport.MessageRef{ChatID: 1, MessageID: 3}))
}

func TestCache_SetTTLAndDelete(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(time.Hour)
	ref := transport.MessageRef{ChatID: 2, MessageID: 5}
	c.Put(ref, "v")
	clk.advance(10 * time.Minute)

	c.SetTTL(5 * time.Minute)
	assert.Equal(t, 5*time.Minute, c.TTL())
	assert.False(t, c.Valid(ref))

	c.SetTTL(0)
	assert.Equal(t, DefaultTTL, c.TTL())
	c.Delete(ref)
	assert.Zero(t, c.Len())
}
