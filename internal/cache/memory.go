package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements in-memory TTL caching of dedup keys.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache.
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get reports whether the key is present and not expired.
func (c *MemoryCache) Get(key string) bool {
	_, found := c.cache.Get(key)
	return found
}

// Set marks the key as seen for the given TTL.
func (c *MemoryCache) Set(key string, ttl time.Duration) {
	c.cache.Set(key, struct{}{}, ttl)
}
