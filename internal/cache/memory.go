package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps small entries (model replies, deck names) in process
// memory. Entries above maxEntry bytes are not kept.
type MemoryCache struct {
	items    *gocache.Cache
	maxEntry int
}

// NewMemoryCache creates a memory cache with no entry size limit
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{items: gocache.New(ttl, cleanupInterval)}
}

// WithMaxEntry limits the size of a single entry; zero means unlimited
func (c *MemoryCache) WithMaxEntry(n int) *MemoryCache {
	c.maxEntry = n
	return c
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := v.([]byte)
	return data, ok
}

// Set stores a copy of value. A zero TTL uses the cache default. An
// oversized value is dropped along with any older entry under key.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if c.maxEntry > 0 && len(value) > c.maxEntry {
		c.items.Delete(key)
		return nil
	}
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.items.Flush()
	return nil
}

// Len counts entries, expired ones included until the next cleanup
func (c *MemoryCache) Len() int {
	return c.items.ItemCount()
}
