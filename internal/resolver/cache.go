package resolver

import (
	"sync"
	"time"
)

// optionCacheTTL bounds option staleness.
const optionCacheTTL = 5 * time.Minute

// optionCache is the process-wide cache of generated options, keyed by
// (alert, max). It is the only module-level singleton the resolver needs;
// entries expire after optionCacheTTL.
type optionCache struct {
	mu      sync.Mutex
	entries map[string]optionCacheEntry
}

type optionCacheEntry struct {
	options   []ResolutionOption
	expiresAt time.Time
}

var (
	cacheOnce   sync.Once
	globalCache *optionCache
)

// sharedOptionCache lazily initializes the process-wide cache.
func sharedOptionCache() *optionCache {
	cacheOnce.Do(func() {
		globalCache = &optionCache{entries: make(map[string]optionCacheEntry)}
	})
	return globalCache
}

func (c *optionCache) get(key string, now time.Time) ([]ResolutionOption, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.options, true
}

func (c *optionCache) put(key string, options []ResolutionOption, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = optionCacheEntry{options: options, expiresAt: now.Add(optionCacheTTL)}
}

// drain clears the cache; called on shutdown and between tests.
func (c *optionCache) drain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]optionCacheEntry)
}

// DrainCache clears the process-wide option cache.
func DrainCache() {
	sharedOptionCache().drain()
}
