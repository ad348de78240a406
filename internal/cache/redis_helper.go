package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/andresuchdata/order-tracker/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	// sharedPayloadFloor bounds the Redis copy when snapshots never expire
	// in process, so a restarted replica still picks up a newer sheet.
	sharedPayloadFloor = time.Minute

	// A lookup waits on Redis before the upstream fetch; keep that short.
	redisDialTimeout = 2 * time.Second
	redisIOTimeout   = time.Second
)

// dialRedis connects and pings once so a misconfigured cache is reported at
// startup rather than on the first lookup.
func dialRedis(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w", opts.Addr, err)
	}
	return client, nil
}

// sharedPayloadTTL is how long a raw payload lives in Redis.
func sharedPayloadTTL(cfg config.CacheConfig) time.Duration {
	if ttl := cfg.SnapshotTTL(); ttl > 0 {
		return ttl
	}
	return sharedPayloadFloor
}

// redisOptions prefers REDIS_URL and falls back to host/port/password/db.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		host, port := cfg.RedisHost, cfg.RedisPort
		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	opts.DialTimeout = redisDialTimeout
	opts.ReadTimeout = redisIOTimeout
	opts.WriteTimeout = redisIOTimeout
	return opts, nil
}
