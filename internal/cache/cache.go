// Package cache provides a process-lifetime, thread-safe TTL cache for fetched tables.
//
// Entries are immutable snapshots: a refresh replaces the stored value, it never
// mutates it, so a reader holding a value from a previous Get is unaffected.
// Concurrent misses for the same key share a single loader call, and a failed
// load leaves the key unset. The shared call is detached from the cancellation
// of whichever caller started it; each caller stops waiting on its own context.
// A load that was in flight when its key was invalidated or overwritten does
// not store its result.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rewired-gh/covidboard/internal/logger"
)

// Loader produces the value for a key on a cache miss.
type Loader[V any] func(ctx context.Context) (V, error)

type entry[V any] struct {
	value    V
	loadedAt time.Time
}

// Stats counts cache lookups.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Cache is a TTL cache keyed by source descriptor string.
type Cache[V any] struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
	gens    map[string]uint64
	epoch   uint64
	group   singleflight.Group
	hits    uint64
	misses  uint64
	mu      sync.RWMutex
}

// New creates a cache whose entries are valid for ttl. A ttl of zero means entries never expire.
func New[V any](ttl time.Duration) *Cache[V] {
	return NewWithClock[V](ttl, time.Now)
}

// NewWithClock is New with an injectable clock, used by tests.
func NewWithClock[V any](ttl time.Duration, now func() time.Time) *Cache[V] {
	return &Cache[V]{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry[V]),
		gens:    make(map[string]uint64),
	}
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.expired(e) {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Put stores value under key, replacing any previous snapshot.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	c.entries[key] = entry[V]{value: value, loadedAt: c.now()}
}

// generation identifies the state of key that a load started from.
type generation struct {
	epoch uint64
	gen   uint64
}

func (c *Cache[V]) generation(key string) generation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return generation{epoch: c.epoch, gen: c.gens[key]}
}

// putIfCurrent stores value only if key has not been invalidated, purged or
// overwritten since g was taken.
func (c *Cache[V]) putIfCurrent(key string, value V, g generation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != g.epoch || c.gens[key] != g.gen {
		return false
	}
	c.gens[key]++
	c.entries[key] = entry[V]{value: value, loadedAt: c.now()}
	return true
}

// GetOrLoad returns the cached value, or calls load and caches its result.
// The boolean reports a cache hit. On error nothing is stored.
// load runs without the caller's cancellation so that other callers sharing it
// are unaffected; it must bound itself, as the HTTP client timeout does.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load Loader[V]) (V, bool, error) {
	var zero V
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Another caller may have filled the key while we waited on the group.
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && !c.expired(e) {
			return e.value, nil
		}

		g := c.generation(key)
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if !c.putIfCurrent(key, v, g) {
			logger.Debug("Cache load for %s finished after invalidation, result not stored", key)
		}
		return v, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, false, res.Err
	}
	if res.Shared {
		logger.Debug("Cache load for %s shared with a concurrent request", key)
	}

	v, ok := res.Val.(V)
	if !ok {
		return zero, false, fmt.Errorf("cache: unexpected value type %T for %s", res.Val, key)
	}
	return v, false, nil
}

// Invalidate removes key so the next GetOrLoad reloads it.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.gens[key]++
	c.group.Forget(key)
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		c.group.Forget(key)
	}
	c.entries = make(map[string]entry[V])
	c.epoch++
}

// Age returns how long ago key was loaded, and whether it is cached.
func (c *Cache[V]) Age(key string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		return 0, false
	}
	return c.now().Sub(e.loadedAt), true
}

// Stats returns lookup counters and the current entry count.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}

// expired must be called with mu held.
func (c *Cache[V]) expired(e entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.loadedAt) >= c.ttl
}
