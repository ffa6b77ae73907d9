package route

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCacheExpiry(t *testing.T) {
	clock := newFakeClock()
	c := NewCache[int](30*time.Minute, clock.Now)
	c.Set("a", 1)

	clock.Advance(29 * time.Minute)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit before ttl, got %v %v", v, ok)
	}
	clock.Advance(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss at ttl")
	}
}

func TestCacheSetAged(t *testing.T) {
	clock := newFakeClock()
	c := NewCache[string](30*time.Minute, clock.Now)
	c.SetAged("fallback", "x", 0.8)

	clock.Advance(5 * time.Minute)
	if _, ok := c.Get("fallback"); !ok {
		t.Fatalf("expected aged entry to survive 5 minutes")
	}
	clock.Advance(time.Minute + time.Second)
	if _, ok := c.Get("fallback"); ok {
		t.Fatalf("expected aged entry to expire after 6 minutes")
	}
}

func TestCacheSweep(t *testing.T) {
	clock := newFakeClock()
	c := NewCache[int](10*time.Minute, clock.Now)
	c.Set("old", 1)
	clock.Advance(8 * time.Minute)
	c.Set("new", 2)
	clock.Advance(3 * time.Minute)

	if n := c.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Len())
	}
	if _, ok := c.Get("new"); !ok {
		t.Fatalf("expected fresh entry to remain")
	}
}

func TestCacheConcurrentAccessDuringSweep(t *testing.T) {
	clock := newFakeClock()
	c := NewCache[int](time.Minute, clock.Now)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (w*200+i)%50)
				c.Set(key, i)
				c.Get(key)
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			clock.Advance(time.Second)
			c.Sweep()
		}
	}()
	wg.Wait()

	if c.Len() > 50 {
		t.Fatalf("unexpected entry count %d", c.Len())
	}
}
