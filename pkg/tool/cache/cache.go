// Package cache memoises the results of idempotent external calls.
//
// Only successful results are stored. Expired entries behave as misses and
// are evicted lazily on lookup. Concurrent callers asking for the same
// in-flight key share a single underlying call.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is an in-memory memo keyed by derived call keys.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	flight  singleflight.Group
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for the key, treating expired entries as
// misses and evicting them.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !ent.expiresAt.IsZero() && !c.now().Before(ent.expiresAt) {
		delete(c.entries, key)

		return nil, false
	}

	return ent.value, true
}

// Put stores a value. A zero ttl keeps the entry for the life of the cache.
func (c *Cache) Put(key string, value any, ttl time.Duration) {
	ent := entry{value: value}
	if ttl > 0 {
		ent.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = ent
	c.mu.Unlock()
}

// Len returns the number of live entries, counting expired ones that have
// not been looked up since they lapsed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Do returns the cached value for key, or runs fn to produce it. Concurrent
// calls for the same key wait on the first in-flight call instead of
// duplicating it. Failures are returned to every waiter and never cached.
//
// A caller whose context ends stops waiting, but the in-flight call itself
// finishes and its result is still cached for the next requester.
func (c *Cache) Do(ctx context.Context, key string, ttl time.Duration, fn func() (any, error)) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	resC := c.flight.DoChan(key, func() (any, error) {
		// A finished flight may have populated the entry between our miss
		// and joining the group.
		if value, ok := c.Get(key); ok {
			return value, nil
		}
		value, err := fn()
		if err != nil {
			return nil, err
		}
		c.Put(key, value, ttl)

		return value, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resC:
		return res.Val, res.Err
	}
}
