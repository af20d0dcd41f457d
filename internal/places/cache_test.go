package places

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgageintake/pkg/domain"
)

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache, err := NewMemoryCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", domain.Address{City: "A"}))
	require.NoError(t, cache.Set(ctx, "b", domain.Address{City: "B"}))
	_, ok, _ := cache.Get(ctx, "a")
	require.True(t, ok)
	require.NoError(t, cache.Set(ctx, "c", domain.Address{City: "C"}))

	_, ok, _ = cache.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	addr, ok, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A", addr.City)
	assert.Equal(t, 2, cache.Len())

	def, err := NewMemoryCache(0)
	require.NoError(t, err)
	assert.Equal(t, 0, def.Len())
}

func TestRedisCacheUnreachableReportsErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	cache := NewRedisCacheFromClient(client, time.Hour)
	t.Cleanup(func() { _ = cache.Close() })
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "k")
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get")

	err = cache.Set(ctx, "k", domain.Address{City: "Austin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set")

	other := NewRedisCache("127.0.0.1:1", "", 0, 0)
	assert.NoError(t, other.Close())
}
