// Package cache provides a small in-memory TTL cache used for catalog
// derivatives (column listings, relationship listings). Entries expire
// after their TTL and a background goroutine sweeps expired entries.
package cache

import (
	"sync"
	"time"
)

// Entry represents a cache entry with metadata
type Entry struct {
	Key       string
	Value     interface{}
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Stats represents cache statistics
type Stats struct {
	TotalEntries int64   `json:"total_entries"`
	HitRate      float64 `json:"hit_rate"`
	MissRate     float64 `json:"miss_rate"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
}

// MemoryCache is a TTL cache backed by a map
type MemoryCache struct {
	defaultTTL  time.Duration
	cleanupFreq time.Duration
	mu          sync.RWMutex
	entries     map[string]Entry
	hits        int64
	misses      int64
	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// NewMemoryCache creates a new in-memory cache with background cleanup
func NewMemoryCache(defaultTTL, cleanupFreq time.Duration) *MemoryCache {
	c := &MemoryCache{
		defaultTTL:  defaultTTL,
		cleanupFreq: cleanupFreq,
		entries:     make(map[string]Entry),
		stopCleanup: make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go c.backgroundCleanup()
	}

	return c
}

// Get retrieves a value from the cache; the second return is false on
// a miss or an expired entry
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()

		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.misses++
		c.mu.Unlock()

		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()

	return entry.Value, true
}

// Set stores a value with the given TTL (0 uses the default TTL)
func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = Entry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Delete removes a single key
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// DeletePrefix removes every key starting with the given prefix. The
// catalog uses this to invalidate all derivatives of one table on
// re-registration.
func (c *MemoryCache) DeletePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
}

// Clear removes all entries
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]Entry)
	c.hits = 0
	c.misses = 0
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// GetStats returns cache statistics
func (c *MemoryCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		TotalEntries: int64(len(c.entries)),
		Hits:         c.hits,
		Misses:       c.misses,
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
		stats.MissRate = float64(stats.Misses) / float64(total)
	}

	return stats
}

// Close stops the background cleanup goroutine
func (c *MemoryCache) Close() error {
	c.cleanupOnce.Do(func() {
		close(c.stopCleanup)
	})

	return nil
}

// backgroundCleanup runs periodic cleanup of expired entries
func (c *MemoryCache) backgroundCleanup() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}
