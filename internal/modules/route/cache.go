// README: Generic TTL cache with an injected clock; the sweeper evicts expired entries.
package route

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value     V
	writtenAt time.Time
}

// Cache is safe for concurrent use. Writes to the same key are last-writer-wins.
type Cache[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]cacheEntry[V]
}

func NewCache[V any](ttl time.Duration, now func() time.Time) *Cache[V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{ttl: ttl, now: now, items: make(map[string]cacheEntry[V])}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.fresh(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.SetAged(key, value, 0)
}

// SetAged stores value as if it had been written age*ttl ago, shortening its remaining life.
func (c *Cache[V]) SetAged(key string, value V, age float64) {
	writtenAt := c.now().Add(-time.Duration(float64(c.ttl) * age))
	c.mu.Lock()
	c.items[key] = cacheEntry[V]{value: value, writtenAt: writtenAt}
	c.mu.Unlock()
}

// Sweep removes expired entries and returns how many were evicted.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, e := range c.items {
		if !c.fresh(e) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[V]) fresh(e cacheEntry[V]) bool {
	return c.now().Sub(e.writtenAt) < c.ttl
}
