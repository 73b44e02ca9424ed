// Package views remembers which bot messages can still be refreshed in
// place. A view is kept for a limited time after it was sent; after that the
// bot answers with a new message instead of editing the old one.
package views

import (
	"sync"
	"time"

	"housebot/internal/transport"
)

// DefaultTTL is how long a sent view stays editable.
const DefaultTTL = 15 * time.Minute

type entry[V any] struct {
	v       V
	created time.Time
}

// Cache maps message refs to view state. Safe for concurrent use.
type Cache[V any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	max int
	now func() time.Time
	m   map[transport.MessageRef]entry[V]
}

// New creates a cache. ttl <= 0 uses DefaultTTL.
func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{ttl: ttl, max: 5000, now: time.Now, m: map[transport.MessageRef]entry[V]{}}
}

// WithMax caps the number of live entries.
func (c *Cache[V]) WithMax(max int) *Cache[V] {
	if max <= 0 {
		max = 5000
	}
	c.mu.Lock()
	c.max = max
	c.mu.Unlock()
	return c
}

// SetTTL changes the TTL for existing and future entries.
func (c *Cache[V]) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

func (c *Cache[V]) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}

// Put stores v for ref, stamped with the current time.
func (c *Cache[V]) Put(ref transport.MessageRef, v V) {
	c.mu.Lock()
	c.m[ref] = entry[V]{v: v, created: c.now()}
	c.enforceMaxLocked()
	c.mu.Unlock()
}

// Get returns the view for ref while it is within the TTL.
func (c *Cache[V]) Get(ref transport.MessageRef) (V, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[ref]
	ttl := c.ttl
	c.mu.RUnlock()
	if !ok || now.Sub(e.created) >= ttl {
		var zero V
		return zero, false
	}
	return e.v, true
}

// Valid reports whether ref can still be edited.
func (c *Cache[V]) Valid(ref transport.MessageRef) bool {
	_, ok := c.Get(ref)
	return ok
}

// Delete forgets ref.
func (c *Cache[V]) Delete(ref transport.MessageRef) {
	c.mu.Lock()
	delete(c.m, ref)
	c.mu.Unlock()
}

// Sweep drops entries older than the TTL at now and returns how many went.
func (c *Cache[V]) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.m {
		if now.Sub(e.created) >= c.ttl {
			delete(c.m, k)
			n++
		}
	}
	return n
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// enforceMaxLocked evicts the oldest entries until within max.
func (c *Cache[V]) enforceMaxLocked() {
	for len(c.m) > c.max {
		var (
			oldest transport.MessageRef
			at     time.Time
			found  bool
		)
		for k, e := range c.m {
			if !found || e.created.Before(at) {
				oldest, at, found = k, e.created, true
			}
		}
		delete(c.m, oldest)
	}
}
