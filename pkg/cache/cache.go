// Package cache provides the TTL cache shared by the resolver and the edge proxy.
//
// The cache is intentionally passive: entries are checked against their
// TTL by the reader and expired entries are treated as absent. There is
// no background eviction; abandoned entries are reclaimed lazily on
// lookup or overwritten by the next writer.
package cache

import (
	"sync"
	"time"
)

// Cache is the storage abstraction injected into both subsystems.
// Values are opaque to the cache; callers own the stored types.
type Cache interface {
	// Get returns the value for key, or ok=false when the key is
	// missing or its entry has expired.
	Get(key string) (any, bool)

	// Put stores value under key for ttl. Writes are last-writer-wins.
	Put(key string, value any, ttl time.Duration)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Memory is an in-process Cache implementation. It is valid only for
// the lifetime of one process and is not shared across instances.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
	}
}

// Get returns the cached value for key if present and not expired.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a writer may have refreshed it.
		if cur, ok := m.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Put stores value under key for ttl. A non-positive ttl stores nothing.
func (m *Memory) Put(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
}

// Len returns the number of stored entries, including not-yet-reaped
// expired ones.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ Cache = (*Memory)(nil)
