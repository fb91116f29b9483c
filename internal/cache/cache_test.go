package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/affan-mulla/nextup/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache(t *testing.T) {
	t.Run("CreateMemoryCache", func(t *testing.T) {
		config := cache.DefaultCacheConfig()
		config.Backend = cache.CacheTypeMemory

		c, err := cache.NewCache(config)
		require.NoError(t, err)
		defer c.Close()

		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "test", []byte("value"), time.Minute))

		value, err := c.Get(ctx, "test")
		assert.NoError(t, err)
		assert.Equal(t, []byte("value"), value)

		require.NoError(t, c.Delete(ctx, "test"))
		_, err = c.Get(ctx, "test")
		assert.ErrorIs(t, err, cache.ErrKeyNotFound)
	})

	t.Run("InvalidCacheType", func(t *testing.T) {
		config := cache.DefaultCacheConfig()
		config.Backend = cache.CacheType("invalid")

		_, err := cache.NewCache(config)
		assert.ErrorIs(t, err, cache.ErrInvalidCacheType)
	})
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := cache.NewPageStoreCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	require.NoError(t, c.Set(ctx, "forever", []byte("y"), 0))

	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, cache.ErrKeyNotFound)

	v, err := c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), v)
}

func TestMemoryCache_KeysAndDeletePattern(t *testing.T) {
	c := cache.NewPageStoreCache()
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"ideas:feed:0", "ideas:feed:1", "ideas:detail:abc", "profile:u1:ideas:0"} {
		require.NoError(t, c.Set(ctx, k, []byte("{}"), 0))
	}

	keys, err := c.Keys(ctx, "ideas:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"ideas:detail:abc", "ideas:feed:0", "ideas:feed:1"}, keys)

	keys, err = c.Keys(ctx, "*:ideas:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"profile:u1:ideas:0"}, keys)

	require.NoError(t, c.DeletePattern(ctx, "ideas:feed:*"))
	keys, err = c.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"ideas:detail:abc", "profile:u1:ideas:0"}, keys)
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := cache.NewPageStoreCache()
	defer c.Close()
	ctx := context.Background()

	original := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", original, 0))
	original[0] = 'z'

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)

	v[1] = 'z'
	again, _ := c.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryCache_EvictsOverLimit(t *testing.T) {
	config := cache.DefaultCacheConfig()
	config.MaxMemory = 300
	config.CleanupInterval = 0
	c := cache.NewMemoryCache(config)
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, c.Set(ctx, k, make([]byte, 50), 0))
	}

	stats := c.Stats()
	assert.LessOrEqual(t, stats.MemoryUsage, int64(300))
	assert.Greater(t, stats.Evictions, int64(0))

	// the last write always survives
	ok, err := c.Exists(ctx, "e")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCache_Closed(t *testing.T) {
	c := cache.NewPageStoreCache()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, cache.ErrCacheDisabled)
	assert.ErrorIs(t, c.Set(context.Background(), "k", nil, 0), cache.ErrCacheDisabled)
}

func TestGenericCacheService(t *testing.T) {
	memCache := cache.NewMemoryCache(cache.DefaultCacheConfig())
	defer memCache.Close()

	config := cache.DefaultCacheConfig()
	config.Prefix = "test_service"
	service := cache.NewGenericCacheService(memCache, config)
	ctx := context.Background()

	type page struct {
		ID    int   `json:"id"`
		Score int64 `json:"score"`
	}

	t.Run("SetAndGet", func(t *testing.T) {
		data := page{ID: 1, Score: 3}
		require.NoError(t, service.CacheData(ctx, "ideas:feed:1", data, time.Minute))

		var result page
		require.NoError(t, service.GetCached(ctx, "ideas:feed:1", &result))
		assert.Equal(t, data, result)

		keys, err := memCache.Keys(ctx, "test_service:*")
		require.NoError(t, err)
		assert.Contains(t, keys, "test_service:ideas:feed:1")
	})

	t.Run("InvalidatePattern", func(t *testing.T) {
		require.NoError(t, service.CacheData(ctx, "ideas:feed:2", page{ID: 2}))
		require.NoError(t, service.InvalidatePattern(ctx, "ideas:*"))

		var result page
		assert.ErrorIs(t, service.GetCached(ctx, "ideas:feed:2", &result), cache.ErrKeyNotFound)
	})

	t.Run("GenerateHashKey is deterministic", func(t *testing.T) {
		k1 := service.GenerateHashKey("feed", map[string]interface{}{"limit": 10, "offset": 0})
		k2 := service.GenerateHashKey("feed", map[string]interface{}{"offset": 0, "limit": 10})
		k3 := service.GenerateHashKey("feed", map[string]interface{}{"offset": 10, "limit": 10})
		assert.Equal(t, k1, k2)
		assert.NotEqual(t, k1, k3)
		assert.Regexp(t, `^feed:[0-9a-f]{16}$`, k1)
	})

	t.Run("Disabled", func(t *testing.T) {
		off := cache.DefaultCacheConfig()
		off.Enabled = false
		disabled := cache.NewGenericCacheService(memCache, off)

		assert.False(t, disabled.IsEnabled())
		assert.ErrorIs(t, disabled.CacheData(ctx, "k", 1), cache.ErrCacheDisabled)
		var v int
		assert.ErrorIs(t, disabled.GetCached(ctx, "k", &v), cache.ErrCacheDisabled)
	})

	t.Run("Stats", func(t *testing.T) {
		stats := service.GetStats()
		assert.Greater(t, stats.Hits, int64(0))
		assert.Greater(t, stats.Misses, int64(0))
	})
}
