package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// cacheItem represents an item in the memory cache
type cacheItem struct {
	value      []byte
	expiration time.Time // zero means no expiry
}

func (i *cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// MemoryCache implements Cache using an in-process map
type MemoryCache struct {
	items         map[string]*cacheItem
	mutex         sync.RWMutex
	maxMemory     int64
	currentMemory int64
	hits          int64
	misses        int64
	evictions     int64
	cleanupDone   chan struct{}
	closeOnce     sync.Once
	config        *CacheConfig
	closed        bool
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(config *CacheConfig) *MemoryCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	cache := &MemoryCache{
		items:       make(map[string]*cacheItem),
		maxMemory:   config.MaxMemory,
		cleanupDone: make(chan struct{}),
		config:      config,
	}

	if config.CleanupInterval > 0 {
		go cache.startCleanup(config.CleanupInterval)
	}

	return cache
}

// Get retrieves a copy of the value stored at key
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mutex.RLock()
	if c.closed {
		c.mutex.RUnlock()
		return nil, ErrCacheDisabled
	}
	item, exists := c.items[key]
	c.mutex.RUnlock()

	if !exists || item.expired(time.Now()) {
		atomic.AddInt64(&c.misses, 1)
		if exists {
			c.deleteIfExpired(key)
		}
		return nil, ErrKeyNotFound
	}

	atomic.AddInt64(&c.hits, 1)
	result := make([]byte, len(item.value))
	copy(result, item.value)
	return result, nil
}

// Set stores a copy of value with expiration
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return ErrCacheDisabled
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	newItem := &cacheItem{value: valueCopy}
	if ttl > 0 {
		newItem.expiration = time.Now().Add(ttl)
	}

	c.updateMemoryUsage(key, newItem, c.items[key])
	c.items[key] = newItem
	c.evictIfNeeded(key)
	return nil
}

// Delete removes a value from cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.remove(key)
	return nil
}

// DeletePattern removes all keys matching the given pattern
func (c *MemoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key := range c.items {
		if matchPattern(key, pattern) {
			c.remove(key)
		}
	}
	return nil
}

// Keys returns the sorted live keys matching pattern
func (c *MemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.closed {
		return nil, ErrCacheDisabled
	}

	now := time.Now()
	keys := make([]string, 0, len(c.items))
	for key, item := range c.items {
		if !item.expired(now) && matchPattern(key, pattern) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists in cache
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.items[key]
	return exists && !item.expired(time.Now()), nil
}

// Close stops the cleanup goroutine and drops all items
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.cleanupDone)

		c.mutex.Lock()
		defer c.mutex.Unlock()
		c.items = make(map[string]*cacheItem)
		c.currentMemory = 0
		c.closed = true
	})
	return nil
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	active := int64(0)
	now := time.Now()
	for _, item := range c.items {
		if !item.expired(now) {
			active++
		}
	}

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	hitRatio := 0.0
	if total := hits + misses; total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return CacheStats{
		Hits:        hits,
		Misses:      misses,
		HitRatio:    hitRatio,
		Keys:        active,
		MemoryUsage: c.currentMemory,
		Evictions:   atomic.LoadInt64(&c.evictions),
	}
}

func (c *MemoryCache) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.cleanupDone:
			return
		}
	}
}

func (c *MemoryCache) cleanupExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, item := range c.items {
		if item.expired(now) {
			c.remove(key)
		}
	}
}

func (c *MemoryCache) deleteIfExpired(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if item, ok := c.items[key]; ok && item.expired(time.Now()) {
		c.remove(key)
	}
}

// remove deletes key; caller holds the write lock
func (c *MemoryCache) remove(key string) {
	if item, ok := c.items[key]; ok {
		delete(c.items, key)
		c.updateMemoryUsage(key, nil, item)
	}
}

// evictIfNeeded drops expired items, then arbitrary others, until under
// maxMemory. The key just written is never evicted.
func (c *MemoryCache) evictIfNeeded(keep string) {
	if c.maxMemory <= 0 || c.currentMemory <= c.maxMemory {
		return
	}

	now := time.Now()
	for key, item := range c.items {
		if key != keep && item.expired(now) {
			c.remove(key)
			atomic.AddInt64(&c.evictions, 1)
		}
	}

	for key := range c.items {
		if c.currentMemory <= c.maxMemory {
			return
		}
		if key == keep {
			continue
		}
		c.remove(key)
		atomic.AddInt64(&c.evictions, 1)
	}
}

// calculateMemoryUsage estimates memory usage for a cache item
func calculateMemoryUsage(key string, item *cacheItem) int64 {
	if item == nil {
		return 0
	}
	return int64(len(key) + len(item.value) + 64) // 64 bytes estimated overhead
}

func (c *MemoryCache) updateMemoryUsage(key string, newItem, oldItem *cacheItem) {
	c.currentMemory = c.currentMemory - calculateMemoryUsage(key, oldItem) + calculateMemoryUsage(key, newItem)
}

// matchPattern implements glob matching with the * wildcard only
func matchPattern(text, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		pos := strings.Index(text, part)
		if pos == -1 {
			return false
		}
		text = text[pos+len(part):]
	}
	return strings.HasSuffix(text, last)
}
