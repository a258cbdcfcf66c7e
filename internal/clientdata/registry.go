package clientdata

import (
	"regexp"
	"sort"
	"sync"
)

// Registry tracks the in-memory caches built by the composition root so they
// can be swept and inspected together.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]Sweeper
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]Sweeper)}
}

// Register adds a cache, replacing any cache with the same name
func (r *Registry) Register(c Sweeper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches[c.Name()] = c
}

func (r *Registry) all() []Sweeper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caches))
	for name := range r.caches {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]Sweeper, 0, len(names))
	for _, name := range names {
		result = append(result, r.caches[name])
	}
	return result
}

// Cleanup sweeps expired entries from every cache, returning removals per cache
func (r *Registry) Cleanup() map[string]int {
	result := make(map[string]int)
	for _, c := range r.all() {
		result[c.Name()] = c.Cleanup()
	}
	return result
}

// ClearByPattern removes matching keys from every cache. A nil pattern matches nothing.
func (r *Registry) ClearByPattern(pattern *regexp.Regexp) int {
	total := 0
	for _, c := range r.all() {
		total += c.ClearByPattern(pattern)
	}
	return total
}

// ClearAll empties every cache
func (r *Registry) ClearAll() {
	for _, c := range r.all() {
		c.Clear()
	}
}

// Stats returns stats for every cache ordered by name
func (r *Registry) Stats() []CacheStats {
	caches := r.all()
	result := make([]CacheStats, 0, len(caches))
	for _, c := range caches {
		result = append(result, c.Stats())
	}
	return result
}
