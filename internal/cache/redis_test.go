package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-tracker/internal/config"
	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	days := 2
	expected := models.SubscriptionStatus{
		Status:          models.StatusRenewingSoon,
		Message:         "Renews in 2 days",
		DaysUntilExpiry: &days,
		WillRenew:       true,
	}
	require.NoError(t, cache.Set(ctx, "status:user_1", expected, time.Minute))

	var actual models.SubscriptionStatus
	found, err := cache.Get(ctx, "status:user_1", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out models.SubscriptionStatus
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	cache, mr := setupTestCache(t)
	require.NoError(t, mr.Set("broken", "{not json"))

	var out models.SubscriptionStatus
	found, err := cache.Get(context.Background(), "broken", &out)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "ttl", "value", time.Minute))
	mr.FastForward(2 * time.Minute)

	var out string
	found, err := cache.Get(ctx, "ttl", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInitServer_Unavailable(t *testing.T) {
	_, err := InitServer(context.Background(), config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  100 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestSetNX(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	ok, err := cache.SetNX(ctx, "reminder:user_1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SetNX(ctx, "reminder:user_1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	var out int
	found, err := cache.Get(ctx, "reminder:user_1", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, out)
}
