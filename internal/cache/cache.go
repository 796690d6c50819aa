// Package cache provides a small LRU cache wrapper, trimmed to the one
// shape this module needs: a single fixed-size LRU, no sharding or ARC
// variants, since neither the decoder registry nor the reputation
// trailing-window needs hash-sharded concurrency.
package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// Cache is a fixed-capacity least-recently-used cache.
type Cache struct {
	inner *lru.Cache
}

// New builds a Cache with room for size entries.
func New(size int) (*Cache, error) {
	inner, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

func (c *Cache) Add(key, value interface{}) (evicted bool) {
	return c.inner.Add(key, value)
}

func (c *Cache) Get(key interface{}) (value interface{}, ok bool) {
	return c.inner.Get(key)
}

func (c *Cache) Remove(key interface{}) {
	c.inner.Remove(key)
}

func (c *Cache) Purge() {
	c.inner.Purge()
}

func (c *Cache) Len() int {
	return c.inner.Len()
}
