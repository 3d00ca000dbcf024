// Package pricing provides token price lookup with a bounded TTL cache in
// front of the external oracle.
package pricing

import (
	"context"
	"sync"
	"time"
)

// CacheConfig bounds the price cache.
type CacheConfig struct {
	// TTL is how long a cached quote stays fresh.
	TTL time.Duration
	// MaxEntries caps cache size; stale entries are evicted first, then the
	// oldest fresh one.
	MaxEntries int
}

// DefaultCacheConfig returns production defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        30 * time.Second,
		MaxEntries: 10000,
	}
}

type cacheEntry struct {
	price     float64
	fetchedAt time.Time
}

// Cache is a TTL price cache over a PriceOracle.
type Cache struct {
	oracle PriceOracle
	config CacheConfig
	clock  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates a price cache over the oracle.
func NewCache(oracle PriceOracle, config CacheConfig) *Cache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig().TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig().MaxEntries
	}
	return &Cache{
		oracle:  oracle,
		config:  config,
		clock:   time.Now,
		entries: make(map[string]cacheEntry),
	}
}

var _ PriceOracle = (*Cache)(nil)

// GetPrice returns a cached quote when fresh, otherwise consults the oracle.
// Oracle failures are not cached; the next call retries.
func (c *Cache) GetPrice(ctx context.Context, mint string) (float64, error) {
	now := c.clock()

	c.mu.RLock()
	entry, ok := c.entries[mint]
	c.mu.RUnlock()
	if ok && now.Sub(entry.fetchedAt) < c.config.TTL {
		return entry.price, nil
	}

	price, err := c.oracle.GetPrice(ctx, mint)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	if len(c.entries) >= c.config.MaxEntries {
		c.evictLocked(now)
	}
	c.entries[mint] = cacheEntry{price: price, fetchedAt: now}
	c.mu.Unlock()

	return price, nil
}

// evictLocked removes stale entries, or the oldest entry if none are stale.
func (c *Cache) evictLocked(now time.Time) {
	var oldestKey string
	var oldestAt time.Time
	evicted := false

	for k, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.config.TTL {
			delete(c.entries, k)
			evicted = true
			continue
		}
		if oldestKey == "" || e.fetchedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.fetchedAt
		}
	}
	if !evicted && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
