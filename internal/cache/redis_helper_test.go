package cache

import (
	"testing"
	"time"

	"github.com/andresuchdata/order-tracker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions_HostPortFallback(t *testing.T) {
	opts, err := redisOptions(config.CacheConfig{RedisPassword: "secret", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, redisIOTimeout, opts.ReadTimeout)
}

func TestRedisOptions_URLWins(t *testing.T) {
	opts, err := redisOptions(config.CacheConfig{RedisURL: "redis://:pw@cache.internal:6380/1", RedisHost: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 1, opts.DB)
	assert.Equal(t, redisDialTimeout, opts.DialTimeout)

	_, err = redisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestSharedPayloadTTL(t *testing.T) {
	assert.Equal(t, 90*time.Second, sharedPayloadTTL(config.CacheConfig{SnapshotTTLSeconds: 90}))
	assert.Equal(t, sharedPayloadFloor, sharedPayloadTTL(config.CacheConfig{SnapshotTTLSeconds: 0}))
}

func TestNewRawCache_DisabledIsNoop(t *testing.T) {
	raw, err := NewRawCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, raw.Set(t.Context(), "test://sheet", RawPayload{Data: []byte("x"), FetchedAt: time.Now()}))
	_, hit, err := raw.Get(t.Context(), "test://sheet")
	require.NoError(t, err)
	assert.False(t, hit)
}
