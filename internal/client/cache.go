package client

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type cacheItem struct {
	value     any
	expiresAt time.Time
}

func (i *cacheItem) expired(now time.Time) bool {
	return now.After(i.expiresAt)
}

// CacheStats reports query cache activity
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// QueryCache holds decoded API responses by query key.
//
// Keys are hierarchical: invalidating "tournament:<id>" also drops
// "tournament:<id>:results" and any other key nested under it.
type QueryCache struct {
	mu    sync.RWMutex
	items map[string]*cacheItem
	ttl   time.Duration
	now   func() time.Time

	hits   int64
	misses int64
}

// NewQueryCache creates a cache whose entries stay fresh for ttl
func NewQueryCache(ttl time.Duration) *QueryCache {
	return &QueryCache{
		items: make(map[string]*cacheItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns a fresh value for key
func (c *QueryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || item.expired(c.now()) {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return item.value, true
}

// Set stores value under key
func (c *QueryCache) Set(key string, value any) {
	c.mu.Lock()
	c.items[key] = &cacheItem{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops each key and everything nested under it. Unrelated keys
// are left alone.
func (c *QueryCache) Invalidate(keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		for _, key := range keys {
			if k == key || strings.HasPrefix(k, key+":") {
				delete(c.items, k)
				break
			}
		}
	}
}

// Has reports whether key holds a fresh value without touching the stats
func (c *QueryCache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	return ok && !item.expired(c.now())
}

// Clear empties the cache
func (c *QueryCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*cacheItem)
	c.mu.Unlock()
}

// Stats returns a snapshot of cache activity
func (c *QueryCache) Stats() CacheStats {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return CacheStats{
		Entries: n,
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
	}
}
