// Package memo provides a concurrent build-once cache keyed by string.
package memo

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes the result of a build function per key. Concurrent misses on
// the same key share one build; failed builds are not cached.
type Cache[V any] struct {
	entries map[string]V
	group   singleflight.Group
	mu      sync.RWMutex
}

// New returns an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[string]V)}
}

// Get returns the cached value for key, if any.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	return v, ok
}

// GetOrBuild returns the cached value for key, calling build on a miss.
// The second result reports whether the value came from the cache.
func (c *Cache[V]) GetOrBuild(key string, build func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := build()
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.entries == nil {
			c.entries = make(map[string]V)
		}
		c.entries[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return res.(V), false, nil
}

// Forget drops the cached value for key.
func (c *Cache[V]) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
