package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory cache implementation. It is used directly in
// tests and as the process-local fallback store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	value     []byte
	counter   int64
	expiresAt time.Time
}

// NewMemory creates a new in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

// Get retrieves a value from the cache. Returns (nil, false, nil) on
// miss or expiry.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	// Expired entries are removed lazily; there is no sweeper.
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores a value with the given TTL. TTL<=0 means no caching.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	c.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()

	return nil
}

// SetNX stores the value only if the key is absent or expired.
func (c *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && time.Now().Before(entry.expiresAt) {
		return false, nil
	}
	c.entries[key] = &memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return true, nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Incr atomically increments the counter stored at key. A new or expired
// counter restarts at 1 with a fresh ttl.
func (c *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		entry = &memoryEntry{expiresAt: time.Now().Add(ttl)}
		c.entries[key] = entry
	}
	entry.counter++
	return entry.counter, nil
}

// Ping always succeeds for the in-memory cache.
func (c *Memory) Ping(context.Context) error { return nil }

// Close releases the entry map.
func (c *Memory) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]*memoryEntry)
	c.mu.Unlock()
	return nil
}

// Ensure Memory implements Cache
var _ Cache = (*Memory)(nil)
