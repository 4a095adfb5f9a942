package cache

import (
	"sync"
	"time"
)

// TokenCache is a key -> {value, expiry} store. Expired entries behave as
// absent. Implementations do not deduplicate concurrent fills; callers that
// refresh on miss must tolerate duplicate refreshes.
type TokenCache interface {
	Get(key string) (string, bool)
	Set(key string, value string, expiresAt time.Time)
	Delete(key string)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process TokenCache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry)}
}

// Get returns the cached value if present and unexpired.
func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// Set stores a value with its expiry.
func (m *Memory) Set(key string, value string, expiresAt time.Time) {
	m.mu.Lock()
	m.entries[key] = entry{value: value, expiresAt: expiresAt}
	m.mu.Unlock()
}

// Delete removes a key.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}
