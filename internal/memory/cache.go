package memory

import (
	"sync"
	"time"

	"github.com/tidemark-ai/recollect/internal/db"
)

// ItemCache is the capability interface for the recent-item cache. It is
// injected rather than held in package state so lifecycle and tests don't
// depend on process-wide mutable maps.
type ItemCache interface {
	Get(sourceID string) (*db.Item, bool)
	Set(sourceID string, item *db.Item)
	Evict(sourceID string)
}

type cacheEntry struct {
	item    *db.Item
	addedAt time.Time
}

// TTLCache is a bounded in-memory ItemCache with per-entry TTL. When full it
// evicts the oldest entry by insertion time.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	maxSize int
	ttl     time.Duration
}

// NewTTLCache creates a cache holding at most maxSize entries for at most ttl
func NewTTLCache(maxSize int, ttl time.Duration) *TTLCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &TTLCache{
		entries: make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get returns the cached item for a source ID, if present and fresh
func (c *TTLCache) Get(sourceID string) (*db.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sourceID]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.addedAt) > c.ttl {
		delete(c.entries, sourceID)
		return nil, false
	}
	return e.item, true
}

// Set stores an item under its source ID, evicting the oldest entry if full
func (c *TTLCache) Set(sourceID string, item *db.Item) {
	if sourceID == "" || item == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[sourceID]; !exists && len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.addedAt.Before(oldestAt) {
				oldestKey = k
				oldestAt = e.addedAt
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[sourceID] = cacheEntry{item: item, addedAt: time.Now()}
}

// Evict removes an entry
func (c *TTLCache) Evict(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sourceID)
}

// Len returns the number of cached entries
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
