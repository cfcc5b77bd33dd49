package estimate

import (
	"sync"
	"time"
)

type resultCache struct {
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex
	m   map[string]resultCacheEntry
}

type resultCacheEntry struct {
	result  *PricedEstimateResult
	expires time.Time
}

func newResultCache(ttl time.Duration, now func() time.Time) *resultCache {
	return &resultCache{
		ttl: ttl,
		now: now,
		m:   make(map[string]resultCacheEntry),
	}
}

func (c *resultCache) Get(key string) (*PricedEstimateResult, bool) {
	c.mu.RLock()
	entry, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		c.evictExpired(key)
		return nil, false
	}
	return entry.result, true
}

// evictExpired removes key only if the entry held under the write lock is
// still expired. A Put that lands between the read and the eviction survives.
func (c *resultCache) evictExpired(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.m[key]; ok && c.now().After(cur.expires) {
		delete(c.m, key)
	}
}

func (c *resultCache) Put(key string, result *PricedEstimateResult) {
	c.mu.Lock()
	c.m[key] = resultCacheEntry{result: result, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Purge drops every cached result. Call it after the catalog changes.
func (c *resultCache) Purge() {
	c.mu.Lock()
	c.m = make(map[string]resultCacheEntry)
	c.mu.Unlock()
}
