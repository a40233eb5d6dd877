// Package cache provides a small in-memory TTL cache. The push bridge uses
// it to drop notification events delivered more than once.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/drallgood/ebook-reader/internal/logger"
)

// Cache stores values for a limited time
type Cache[K comparable, V any] interface {
	// Set stores value under key. A ttl <= 0 keeps it until deleted.
	Set(key K, value V, ttl time.Duration)
	Get(key K) (V, bool)
	Delete(key K)
	Len() int
	Clear()
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is a mutex-guarded map. Expired entries are dropped lazily on
// read and swept on write.
type MemoryCache[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]entry[V]
	now   func() time.Time
	log   *logger.Logger
}

// NewMemoryCache creates an empty cache
func NewMemoryCache[K comparable, V any](log *logger.Logger) *MemoryCache[K, V] {
	if log == nil {
		log = logger.Component("cache")
	}
	return &MemoryCache[K, V]{
		items: make(map[K]entry[V]),
		now:   time.Now,
		log:   log,
	}
}

func (c *MemoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
}

func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found || item.expired(c.now()) {
		if found {
			delete(c.items, key)
		}
		var zero V
		return zero, false
	}
	return item.value, true
}

func (c *MemoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len counts entries that have not expired
func (c *MemoryCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep(c.now())
	return len(c.items)
}

func (c *MemoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]entry[V])
}

// Remember stores key for ttl and reports whether it was absent (or expired)
// before the call. The check and the store happen atomically.
func (c *MemoryCache[K, V]) Remember(key K, value V, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if item, found := c.items[key]; found && !item.expired(now) {
		c.log.Debug("Duplicate key within TTL", map[string]interface{}{
			"key": fmt.Sprint(key),
		})
		return false
	}

	c.sweep(now)
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	return true
}

func (c *MemoryCache[K, V]) sweep(now time.Time) {
	for k, item := range c.items {
		if item.expired(now) {
			delete(c.items, k)
		}
	}
}

// WithTTL wraps cache so every Set uses ttl
func WithTTL[K comparable, V any](cache Cache[K, V], ttl time.Duration) Cache[K, V] {
	return &ttlWrapper[K, V]{Cache: cache, ttl: ttl}
}

type ttlWrapper[K comparable, V any] struct {
	Cache[K, V]
	ttl time.Duration
}

func (w *ttlWrapper[K, V]) Set(key K, value V, _ time.Duration) {
	w.Cache.Set(key, value, w.ttl)
}
