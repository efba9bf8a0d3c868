package listing

import (
	"sync"
	"time"
)

// Freshness is how long a cached listing may be served without refetching.
const Freshness = time.Hour

// CacheEntry is a listing snapshot plus the time it was stored.
type CacheEntry struct {
	Snapshot Snapshot
	SavedAt  time.Time
}

// LocationCache stores the latest listing snapshot per navigation context.
//
// This cache decides whether a network fetch can be skipped on navigation; it
// is distinct from the history snapshot store, which only restores UI state.
type LocationCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	now     func() time.Time
}

// NewLocationCache returns an empty cache.
func NewLocationCache() *LocationCache {
	return &LocationCache{
		entries: make(map[string]CacheEntry),
		now:     time.Now,
	}
}

// Get returns the fresh entry for a context. Stale entries are discarded and
// reported as a miss, never served.
func (c *LocationCache) Get(nav string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[nav]
	if !ok {
		return CacheEntry{}, false
	}
	if c.now().Sub(e.SavedAt) > Freshness {
		delete(c.entries, nav)
		return CacheEntry{}, false
	}
	return e, true
}

// Put stores a snapshot for a context, stamped with the current time.
func (c *LocationCache) Put(nav string, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[nav] = CacheEntry{Snapshot: snap, SavedAt: c.now()}
}

// Clear removes the entry for a context.
func (c *LocationCache) Clear(nav string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, nav)
}

// Len returns the number of cached contexts.
func (c *LocationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
