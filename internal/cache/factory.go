package cache

import (
	"fmt"
)

// NewCache creates a cache instance for the configured backend
func NewCache(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	switch config.Backend {
	case CacheTypeMemory:
		return NewMemoryCache(config), nil
	case CacheTypeRedis:
		return NewRedisCache(config)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidCacheType, config.Backend)
	}
}

// NewPageStoreCache returns an unbounded, non-expiring memory cache for
// client-side page stores. Pages leave it only through explicit deletes.
func NewPageStoreCache() *MemoryCache {
	config := DefaultCacheConfig()
	config.Backend = CacheTypeMemory
	config.MaxMemory = 0
	config.TTL = 0
	config.Prefix = ""
	config.CleanupInterval = 0
	return NewMemoryCache(config)
}
