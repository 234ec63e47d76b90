package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *CacheItem) expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Cache provides thread-safe caching with TTL
type Cache struct {
	mu    sync.RWMutex
	items map[string]*CacheItem
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCache creates a cache with the given TTL and starts a janitor that
// evicts expired items every sweep interval. Close stops the janitor.
func NewCache(ttl, sweep time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]*CacheItem),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	if sweep > 0 {
		go c.cleanup(sweep)
	}
	return c
}

func (c *Cache) cleanup(sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep removes expired items and returns how many were dropped
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for key, item := range c.items {
		if item.expired(now) {
			delete(c.items, key)
			dropped++
		}
	}
	return dropped
}

// Close stops the janitor
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// Key derives a stable key from a free-form input; case and surrounding
// whitespace are ignored.
func Key(namespace, input string) string {
	hash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(input))))
	return namespace + ":" + hex.EncodeToString(hash[:])
}

// Get retrieves an unexpired item
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || item.expired(c.now()) {
		return nil, false
	}
	return item.Data, true
}

// Set stores an item for the cache TTL
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	}
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Size returns the number of items in the cache, expired ones included
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	expiredItems := 0
	for _, item := range c.items {
		if item.expired(now) {
			expiredItems++
		}
	}

	return map[string]interface{}{
		"total_items":   len(c.items),
		"expired_items": expiredItems,
		"active_items":  len(c.items) - expiredItems,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}
