package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements bounded in-memory TTL caching
type MemoryCache struct {
	cache      *gocache.Cache
	maxEntries int
	mu         sync.Mutex // Serializes eviction with inserts
}

// NewMemoryCache creates a new memory cache. maxEntries <= 0 means unbounded.
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		cache:      gocache.New(defaultTTL, cleanupInterval),
		maxEntries: maxEntries,
	}
}

// Get retrieves a value from the cache
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	if val, found := c.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a value in the cache with the given TTL (0 uses the default)
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 {
		if _, exists := c.cache.Get(key); !exists && c.cache.ItemCount() >= c.maxEntries {
			c.cache.DeleteExpired()
			if c.cache.ItemCount() >= c.maxEntries {
				c.evictOldest()
			}
		}
	}

	c.cache.Set(key, value, ttl)
	return nil
}

// evictOldest drops the entry closest to expiry
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest int64
	for k, item := range c.cache.Items() {
		if oldestKey == "" || item.Expiration < oldest {
			oldestKey = k
			oldest = item.Expiration
		}
	}
	if oldestKey != "" {
		c.cache.Delete(oldestKey)
	}
}

// Delete removes a value from the cache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// Clear removes all values from the cache
func (c *MemoryCache) Clear(_ context.Context) error {
	c.cache.Flush()
	return nil
}

// Len returns the number of cached entries, including expired ones not yet
// cleaned up
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}
