package utils

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value      interface{}
	expiration time.Time
}

// TTLCache is an in-memory cache with sliding expiration. Reading an entry
// renews its lease, so actively used entries stay resident.
type TTLCache struct {
	items map[string]*cacheEntry
	ttl   time.Duration
	mu    sync.Mutex
	stop  chan struct{}
}

// NewTTLCache creates a cache whose entries expire ttl after last access.
func NewTTLCache(ttl time.Duration) *TTLCache {
	c := &TTLCache{
		items: make(map[string]*cacheEntry),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get retrieves a value and renews its expiration
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiration) {
		delete(c.items, key)
		return nil, false
	}
	entry.expiration = time.Now().Add(c.ttl)
	return entry.value, true
}

// Set stores a value
func (c *TTLCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &cacheEntry{value: value, expiration: time.Now().Add(c.ttl)}
}

// Delete removes an entry
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of resident entries
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the background cleanup
func (c *TTLCache) Close() {
	close(c.stop)
}

func (c *TTLCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

func (c *TTLCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, entry := range c.items {
		if now.After(entry.expiration) {
			delete(c.items, key)
		}
	}
}
