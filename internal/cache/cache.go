package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lgaudin/air-quality-service/internal/models"
)

// Cache defines the interface for air-quality snapshot caching implementations.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.Snapshot, bool, error)
	Set(ctx context.Context, key string, value models.Snapshot, ttl time.Duration) error
}

// Key builds the cache key for a coordinate. Coordinates are rounded to three
// decimals (~110 m) so nearby requests share an entry.
func Key(c models.Coordinate) string {
	return fmt.Sprintf("%.3f,%.3f", c.Latitude, c.Longitude)
}

// InMemoryCache implements Cache using a bounded in-memory map with TTL-based
// expiration. Expired entries are removed on access; when the map is full, the
// entry closest to expiry is evicted. Safe for concurrent use.
type InMemoryCache struct {
	mu         sync.Mutex
	data       map[string]cacheEntry
	maxEntries int
}

// cacheEntry stores a cached snapshot with its expiration timestamp.
type cacheEntry struct {
	value     models.Snapshot
	expiresAt time.Time
}

// NewInMemoryCache creates an in-memory cache holding at most maxEntries
// entries. maxEntries <= 0 means unbounded.
func NewInMemoryCache(maxEntries int) *InMemoryCache {
	return &InMemoryCache{
		data:       make(map[string]cacheEntry),
		maxEntries: maxEntries,
	}
}

// Get retrieves a cached snapshot for the key if present and not expired.
// Returns (data, true, nil) on cache hit, (zero, false, nil) on miss or
// expiration. Expired entries are removed.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.Snapshot{}, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return models.Snapshot{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores a snapshot in cache with the specified TTL duration. When the
// cache is at capacity and the key is new, the entry closest to expiry is
// evicted first.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.Snapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// evictOldestLocked removes the entry with the earliest expiry. Expired
// entries count as oldest, so a sweep happens for free under pressure.
func (c *InMemoryCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.data {
		if oldestKey == "" || e.expiresAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.data, oldestKey)
	}
}

// Len reports the number of stored entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
