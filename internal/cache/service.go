package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/affan-mulla/nextup/internal/pkg/log"
)

// GenericCacheService stores JSON documents under prefixed keys
type GenericCacheService struct {
	cache  Cache
	config *CacheConfig
	stats  serviceStats
}

type serviceStats struct {
	hits    int64
	misses  int64
	errors  int64
	sets    int64
	deletes int64
}

// NewGenericCacheService creates a new generic cache service
func NewGenericCacheService(cache Cache, config *CacheConfig) *GenericCacheService {
	if config == nil {
		config = DefaultCacheConfig()
	}
	return &GenericCacheService{cache: cache, config: config}
}

// GetCached retrieves and unmarshals cached data into target
func (gcs *GenericCacheService) GetCached(ctx context.Context, key string, target interface{}) error {
	if !gcs.IsEnabled() {
		if gcs != nil {
			atomic.AddInt64(&gcs.stats.misses, 1)
		}
		return ErrCacheDisabled
	}

	fullKey := gcs.buildKey(key)
	data, err := gcs.cache.Get(ctx, fullKey)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			atomic.AddInt64(&gcs.stats.misses, 1)
		} else {
			atomic.AddInt64(&gcs.stats.errors, 1)
			log.Error("Cache get error for key %s: %v", fullKey, err)
		}
		return err
	}

	if err := json.Unmarshal(data, target); err != nil {
		atomic.AddInt64(&gcs.stats.errors, 1)
		log.Error("Cache data unmarshal error for key %s: %v", fullKey, err)
		return fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}

	atomic.AddInt64(&gcs.stats.hits, 1)
	return nil
}

// CacheData marshals and stores data in cache with TTL
func (gcs *GenericCacheService) CacheData(ctx context.Context, key string, data interface{}, ttl ...time.Duration) error {
	if !gcs.IsEnabled() {
		return ErrCacheDisabled
	}

	cacheTTL := gcs.config.TTL
	if len(ttl) > 0 && ttl[0] > 0 {
		cacheTTL = ttl[0]
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		atomic.AddInt64(&gcs.stats.errors, 1)
		log.Error("Cache data marshal error for key %s: %v", key, err)
		return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}

	fullKey := gcs.buildKey(key)
	if err := gcs.cache.Set(ctx, fullKey, jsonData, cacheTTL); err != nil {
		atomic.AddInt64(&gcs.stats.errors, 1)
		log.Error("Cache set error for key %s: %v", fullKey, err)
		return err
	}

	atomic.AddInt64(&gcs.stats.sets, 1)
	return nil
}

// InvalidatePattern removes all cache keys matching the given pattern
func (gcs *GenericCacheService) InvalidatePattern(ctx context.Context, pattern string) error {
	if !gcs.IsEnabled() {
		return ErrCacheDisabled
	}

	fullPattern := gcs.buildKey(pattern)
	if err := gcs.cache.DeletePattern(ctx, fullPattern); err != nil {
		atomic.AddInt64(&gcs.stats.errors, 1)
		log.Error("Cache pattern invalidation error for pattern %s: %v", fullPattern, err)
		return err
	}

	atomic.AddInt64(&gcs.stats.deletes, 1)
	return nil
}

// InvalidateKey removes a specific key from cache
func (gcs *GenericCacheService) InvalidateKey(ctx context.Context, key string) error {
	if !gcs.IsEnabled() {
		return ErrCacheDisabled
	}

	fullKey := gcs.buildKey(key)
	if err := gcs.cache.Delete(ctx, fullKey); err != nil {
		atomic.AddInt64(&gcs.stats.errors, 1)
		log.Error("Cache key invalidation error for key %s: %v", fullKey, err)
		return err
	}

	atomic.AddInt64(&gcs.stats.deletes, 1)
	return nil
}

// GenerateHashKey creates a deterministic key "<prefix>:<hash>" from parameters
func (gcs *GenericCacheService) GenerateHashKey(prefix string, params map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(prefix + ":"))

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var valueStr string
		switch val := params[k].(type) {
		case string:
			valueStr = val
		case nil:
			valueStr = "nil"
		default:
			if jsonVal, err := json.Marshal(val); err == nil {
				valueStr = string(jsonVal)
			} else {
				valueStr = fmt.Sprintf("%v", val)
			}
		}
		fmt.Fprintf(h, "%s=%s;", k, valueStr)
	}

	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(h.Sum(nil))[:16])
}

// GetStats merges the service counters with backend statistics
func (gcs *GenericCacheService) GetStats() CacheStats {
	var backend CacheStats
	if gcs.cache != nil {
		backend = gcs.cache.Stats()
	}

	hits := atomic.LoadInt64(&gcs.stats.hits)
	misses := atomic.LoadInt64(&gcs.stats.misses)
	hitRatio := 0.0
	if total := hits + misses; total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return CacheStats{
		Hits:        hits,
		Misses:      misses,
		HitRatio:    hitRatio,
		Keys:        backend.Keys,
		MemoryUsage: backend.MemoryUsage,
		Evictions:   backend.Evictions,
	}
}

// Close closes the cache service
func (gcs *GenericCacheService) Close() error {
	if gcs.cache != nil {
		return gcs.cache.Close()
	}
	return nil
}

// IsEnabled returns whether caching is enabled
func (gcs *GenericCacheService) IsEnabled() bool {
	return gcs != nil && gcs.config.Enabled && gcs.cache != nil
}

// buildKey constructs the full cache key with prefix
func (gcs *GenericCacheService) buildKey(key string) string {
	if gcs.config.Prefix == "" {
		return key
	}
	prefix := gcs.config.Prefix
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return prefix + key
}
