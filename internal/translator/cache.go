package translator

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when the configured size is not positive.
const DefaultCacheSize = 256

// Cache memoizes translations. It is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, interface{}]
}

// NewCache creates a cache holding at most size entries.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, interface{}](size)
	if err != nil {
		// Only returned for non-positive sizes.
		panic(err)
	}
	return &Cache{entries: entries}
}

func (c *Cache) get(key string) (interface{}, bool) {
	return c.entries.Get(key)
}

func (c *Cache) add(key string, v interface{}) {
	c.entries.Add(key, v)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
