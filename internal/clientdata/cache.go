package clientdata

import (
	"regexp"
	"sort"
	"sync"
	"time"
)

// CacheStats describes the live contents of a cache
type CacheStats struct {
	Name string   `json:"name"`
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Sweeper is the type-independent view of a Cache used by housekeeping jobs
// and the system endpoints.
type Sweeper interface {
	Name() string
	Cleanup() int
	Clear()
	ClearByPattern(pattern *regexp.Regexp) int
	Stats() CacheStats
}

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

// Cache is an in-memory key/value store whose entries expire a fixed duration
// after insertion. Expired entries are evicted lazily on Get/Has; Cleanup sweeps
// the rest. Safe for concurrent use.
type Cache[V any] struct {
	name       string
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry[V]
}

// CacheOption configures a Cache
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) CacheOption {
	return func(o *cacheOptions) {
		o.now = now
	}
}

// NewCache creates a cache whose Set falls back to defaultTTL when given ttl <= 0
func NewCache[V any](name string, defaultTTL time.Duration, opts ...CacheOption) *Cache[V] {
	o := cacheOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		name:       name,
		defaultTTL: defaultTTL,
		now:        o.now,
		entries:    make(map[string]cacheEntry[V]),
	}
}

// Name returns the cache name used in stats and logs
func (c *Cache[V]) Name() string {
	return c.name
}

// DefaultTTL returns the TTL applied when Set is called with ttl <= 0
func (c *Cache[V]) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Set stores value under key for ttl
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, storedAt: c.now(), ttl: ttl}
}

// Get returns the value for key. A missing or expired entry is a miss, and an
// expired entry is evicted.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.fresh(entry) {
		delete(c.entries, key)
		return zero, false
	}
	return entry.value, true
}

// Has reports whether key holds a fresh entry, evicting it if expired
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry[V])
}

// ClearByPattern removes every key matching pattern and returns how many were
// removed. A nil pattern matches nothing.
func (c *Cache[V]) ClearByPattern(pattern *regexp.Regexp) int {
	if pattern == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if pattern.MatchString(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Cleanup evicts every expired entry and returns how many were removed
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !c.fresh(entry) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns the current size and sorted keys. Expired entries not yet
// evicted are included.
func (c *Cache[V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return CacheStats{Name: c.name, Size: len(keys), Keys: keys}
}

// fresh reports now - storedAt < ttl; caller holds mu
func (c *Cache[V]) fresh(entry cacheEntry[V]) bool {
	return c.now().Sub(entry.storedAt) < entry.ttl
}
