package resolver

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// fetchTimeout bounds a shared fetch, which outlives any single caller.
const fetchTimeout = 30 * time.Second

// Cache is an in-memory cache keyed by string. Entries never expire and
// failed fetches are not stored, so a transient fault does not poison later
// lookups. Concurrent misses on the same key share one fetch.
type Cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
	group   singleflight.Group
}

func NewCache[T any]() *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]T),
	}
}

// Get returns the cached value for key, if any.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Set stores value under key.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
}

// GetOrFetch returns a cached value or calls fetch to populate it. The fetch
// is shared by every concurrent caller of key, so it runs detached from
// ctx's cancellation; each caller still stops waiting when its own ctx ends.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Double-check: another caller may have filled it while we queued.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		val, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.Set(key, val)
		return val, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
