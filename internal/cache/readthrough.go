// Package cache provides an injected read-through cache with explicit
// invalidation, backed by a fixed-size LRU.
package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Loader fetches the authoritative value on a miss.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

type entry[V any] struct {
	val     V
	expires time.Time
}

// ReadThrough pulls values through its loader on miss or expiry.
type ReadThrough[K comparable, V any] struct {
	lru  *lru.Cache
	load Loader[K, V]
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
}

// New builds a cache holding at most size entries; ttl <= 0 disables expiry.
func New[K comparable, V any](size int, ttl time.Duration, load Loader[K, V]) (*ReadThrough[K, V], error) {
	if size <= 0 {
		size = 128
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ReadThrough[K, V]{lru: c, load: load, ttl: ttl, now: time.Now}, nil
}

func (c *ReadThrough[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := c.lru.Get(key); ok {
		e := v.(entry[V])
		if c.ttl <= 0 || c.now().Before(e.expires) {
			return e.val, nil
		}
		c.lru.Remove(key)
	}

	// Serialise loads so concurrent misses on one key hit the loader once.
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.lru.Get(key); ok {
		e := v.(entry[V])
		if c.ttl <= 0 || c.now().Before(e.expires) {
			return e.val, nil
		}
	}
	val, err := c.load(ctx, key)
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, entry[V]{val: val, expires: c.now().Add(c.ttl)})
	return val, nil
}

func (c *ReadThrough[K, V]) Invalidate(key K) { c.lru.Remove(key) }

func (c *ReadThrough[K, V]) Purge() { c.lru.Purge() }

func (c *ReadThrough[K, V]) Len() int { return c.lru.Len() }
