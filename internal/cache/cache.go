package cache

import (
	"sort"
	"sync"
	"time"
)

// Cache is a bounded, time-expiring map keyed by MTO number. Eviction is by
// insertion order: when the cap is exceeded the oldest insertion goes.
// Expired entries are dropped on touch. Every operation holds a single lock
// and does no I/O, so the hit path stays sub-microsecond.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration

	entries map[string]*entry[V]
	order   []string // insertion order, oldest first

	hits   uint64
	misses uint64
	freq   map[string]uint64 // per-MTO query counts
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
}

// New creates a cache with the given size cap and entry TTL.
func New[V any](maxSize int, ttl time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*entry[V]),
		freq:    make(map[string]uint64),
	}
}

// Get returns the cached value for key. It records a hit or miss and bumps
// the key's query frequency either way.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.freq[key]++

	e, ok := c.entries[key]
	if ok && c.ttl > 0 && time.Since(e.insertedAt) > c.ttl {
		c.removeLocked(key)
		ok = false
	}
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores a value, evicting the oldest insertion if the cap is exceeded.
// Re-setting an existing key refreshes its insertion position.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeFromOrderLocked(key)
	}
	c.entries[key] = &entry[V]{value: value, insertedAt: time.Now()}
	c.order = append(c.order, key)

	for len(c.entries) > c.maxSize {
		c.removeLocked(c.order[0])
	}
}

// Invalidate removes one entry, reporting whether it was present.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

// Clear drops every entry and returns the count dropped. Counters are
// preserved.
func (c *Cache[V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*entry[V])
	c.order = c.order[:0]
	return n
}

// ResetStats zeroes the hit/miss counters and the frequency histogram while
// preserving cached entries.
func (c *Cache[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hits = 0
	c.misses = 0
	c.freq = make(map[string]uint64)
}

// Stats is a point-in-time snapshot of the cache counters.
type Stats struct {
	Size         int     `json:"size"`
	MaxSize      int     `json:"max_size"`
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
	TotalQueries uint64  `json:"total_queries"`
	UniqueMTOs   int     `json:"unique_mtos"`
}

// Stats returns a snapshot of the counters. HitRate is computed on read and
// is 0 when no queries have been made.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Size:         len(c.entries),
		MaxSize:      c.maxSize,
		Hits:         c.hits,
		Misses:       c.misses,
		TotalQueries: c.hits + c.misses,
		UniqueMTOs:   len(c.freq),
	}
	if s.TotalQueries > 0 {
		s.HitRate = float64(c.hits) / float64(s.TotalQueries)
	}
	return s
}

// HotKey is one row of the query-frequency report.
type HotKey struct {
	MTO   string `json:"mto"`
	Count uint64 `json:"count"`
}

// HotKeys returns the topN most queried keys, most frequent first. Ties
// break by key so the order is deterministic.
func (c *Cache[V]) HotKeys(topN int) []HotKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]HotKey, 0, len(c.freq))
	for k, n := range c.freq {
		out = append(out, HotKey{MTO: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].MTO < out[j].MTO
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

func (c *Cache[V]) removeLocked(key string) {
	delete(c.entries, key)
	c.removeFromOrderLocked(key)
}

func (c *Cache[V]) removeFromOrderLocked(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
