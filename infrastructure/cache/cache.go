// Package cache provides a small TTL-bounded in-memory cache, specialized
// here to the one thing the pipeline repeatedly re-fetches within a single
// run: a node's column schema from the warehouse (infrastructure/adapters/postgres).
package cache

import (
	"sync"
	"time"

	"github.com/axel-mauroy/verity-governance-as-code/ports"
)

type CacheEntry struct {
	Value      interface{}
	Expiration time.Time
}

type CacheConfig struct {
	DefaultTTL      time.Duration
	MaxSize         int
	CleanupInterval time.Duration
}

func DefaultConfig() CacheConfig {
	return CacheConfig{
		DefaultTTL:      5 * time.Minute,
		MaxSize:         1000,
		CleanupInterval: 10 * time.Minute,
	}
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	config  CacheConfig
}

func NewCache(cfg CacheConfig) *Cache {
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 1000
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}

	c := &Cache{
		entries: make(map[string]*CacheEntry),
		config:  cfg,
	}

	go c.startCleanup()
	return c
}

func (c *Cache) startCleanup() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.Expiration) {
			delete(c.entries, key)
		}
	}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.Expiration) {
		return nil, false
	}

	return entry.Value, true
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &CacheEntry{
		Value:      value,
		Expiration: time.Now().Add(ttl),
	}
}

func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry)
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// ColumnCache specializes Cache to the Connector.FetchColumns result shape,
// keyed by table name, so callers never see the underlying string-key/
// interface{} cache or do their own type assertion.
type ColumnCache struct {
	cache *Cache
}

func NewColumnCache(ttl time.Duration) *ColumnCache {
	return &ColumnCache{cache: NewCache(CacheConfig{DefaultTTL: ttl})}
}

func (c *ColumnCache) Get(table string) ([]ports.ColumnSchema, bool) {
	v, ok := c.cache.Get(table)
	if !ok {
		return nil, false
	}
	cols, ok := v.([]ports.ColumnSchema)
	return cols, ok
}

func (c *ColumnCache) Set(table string, cols []ports.ColumnSchema) {
	c.cache.Set(table, cols, 0)
}

func (c *ColumnCache) Invalidate(table string) {
	c.cache.Invalidate(table)
}

func (c *ColumnCache) InvalidateAll() {
	c.cache.InvalidateAll()
}
