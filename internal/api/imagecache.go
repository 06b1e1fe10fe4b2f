package api

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// ImageCache is a concurrent-safe LRU cache for rendered PNGs with TTL
// expiration. Keys are pollutant and image name.
type ImageCache struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	entries    map[imageKey]*imageEntry
	order      []imageKey // front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type imageKey struct {
	pollutant string
	name      string
}

type imageEntry struct {
	data      []byte
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewImageCache creates a cache holding at most maxEntries images for ttl.
// A maxEntries below 1 disables caching.
func NewImageCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *ImageCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ImageCache{
		clock:      clock,
		entries:    make(map[imageKey]*imageEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get returns a cached image, or nil on miss or expiration.
func (c *ImageCache) Get(pollutant, name string) []byte {
	key := imageKey{pollutant, name}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil
	}
	if c.clock.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.data
}

// Put stores an image, evicting the least recently used entry at capacity.
func (c *ImageCache) Put(pollutant, name string, data []byte) {
	if c.maxEntries < 1 {
		return
	}
	key := imageKey{pollutant, name}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeFromOrder(key)
	}
	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = &imageEntry{data: data, createdAt: c.clock.Now()}
	c.order = append(c.order, key)
}

// Invalidate drops every image of a pollutant.
func (c *ImageCache) Invalidate(pollutant string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.order[:0]
	for _, key := range c.order {
		if key.pollutant == pollutant {
			delete(c.entries, key)
			continue
		}
		remaining = append(remaining, key)
	}
	c.order = remaining
}

// Stats returns cache performance statistics.
func (c *ImageCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *ImageCache) removeFromOrder(key imageKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
