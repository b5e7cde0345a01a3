package cache

import (
	"context"
	"sync"
)

// LookupFunc resolves an id to a name. The bool is false when the id is
// unknown; that answer is cached too.
type LookupFunc func(ctx context.Context, id int64) (string, bool, error)

// NameCache memoizes a LookupFunc. Errors are never cached.
//
// Thread-safe: Uses RWMutex for concurrent access.
type NameCache struct {
	mu      sync.RWMutex
	entries map[int64]nameEntry
	lookup  LookupFunc
	maxSize int

	hits, misses int
}

type nameEntry struct {
	name  string
	found bool
}

// NewNameCache wraps lookup.
// maxSize: Maximum number of entries (use 0 for unlimited)
func NewNameCache(lookup LookupFunc, maxSize int) *NameCache {
	return &NameCache{
		entries: make(map[int64]nameEntry, 256),
		lookup:  lookup,
		maxSize: maxSize,
	}
}

// Get returns the name of id, consulting the lookup on a miss or when caching
// is disabled (ICATCHECK_CACHE=0).
func (c *NameCache) Get(ctx context.Context, id int64) (string, bool, error) {
	if !Disabled {
		c.mu.RLock()
		entry, ok := c.entries[id]
		c.mu.RUnlock()
		if ok {
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			return entry.name, entry.found, nil
		}
	}

	name, found, err := c.lookup(ctx, id)
	if err != nil {
		return "", false, err
	}
	if Disabled {
		return name, found, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	// At capacity, keep serving from the lookup without evicting
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		return name, found, nil
	}
	c.entries[id] = nameEntry{name: name, found: found}
	return name, found, nil
}

// Stats returns the hit and miss counters.
func (c *NameCache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Len returns the number of cached ids.
func (c *NameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
