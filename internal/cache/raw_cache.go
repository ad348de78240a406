package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/andresuchdata/order-tracker/internal/config"
	"github.com/redis/go-redis/v9"
)

// RawCache shares the raw sheet payload between replicas so that only one
// of them hits the upstream source per TTL window.
type RawCache interface {
	Get(ctx context.Context, source string) (RawPayload, bool, error)
	Set(ctx context.Context, source string, payload RawPayload) error
	Invalidate(ctx context.Context, source string) error
}

// RawPayload is the sheet as fetched upstream and when that fetch happened.
type RawPayload struct {
	Data      []byte
	FetchedAt time.Time
}

// Hash fields of a shared payload entry.
const (
	fieldData      = "data"
	fieldFetchedAt = "fetched_at"
)

type redisRawCache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

type noopRawCache struct{}

func NewRawCache(cfg config.CacheConfig) (RawCache, error) {
	if !cfg.Enabled {
		return &noopRawCache{}, nil
	}

	client, err := dialRedis(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	namespace := cfg.RawPayloadKeyNamespace
	if namespace == "" {
		namespace = "order_tracker"
	}

	return &redisRawCache{client: client, ttl: sharedPayloadTTL(cfg), namespace: namespace}, nil
}

func NewNoopRawCache() RawCache {
	return &noopRawCache{}
}

func (c *redisRawCache) Get(ctx context.Context, source string) (RawPayload, bool, error) {
	fields, err := c.client.HGetAll(ctx, rawPayloadKey(c.namespace, source)).Result()
	if err != nil {
		return RawPayload{}, false, fmt.Errorf("redis get failed: %w", err)
	}
	data, ok := fields[fieldData]
	if !ok {
		return RawPayload{}, false, nil
	}

	payload := RawPayload{Data: []byte(data)}
	// an unreadable timestamp leaves FetchedAt zero; the reader then stamps
	// the payload itself
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldFetchedAt]); err == nil {
		payload.FetchedAt = ts
	}
	return payload, true, nil
}

func (c *redisRawCache) Set(ctx context.Context, source string, payload RawPayload) error {
	key := rawPayloadKey(c.namespace, source)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldData, payload.Data,
			fieldFetchedAt, payload.FetchedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisRawCache) Invalidate(ctx context.Context, source string) error {
	if err := c.client.Del(ctx, rawPayloadKey(c.namespace, source)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (n *noopRawCache) Get(ctx context.Context, source string) (RawPayload, bool, error) {
	return RawPayload{}, false, nil
}

func (n *noopRawCache) Set(ctx context.Context, source string, payload RawPayload) error {
	return nil
}

func (n *noopRawCache) Invalidate(ctx context.Context, source string) error {
	return nil
}

// rawPayloadKey hashes the source name; published sheet URLs are long and
// carry the document key.
func rawPayloadKey(namespace, source string) string {
	sum := sha1.Sum([]byte(source))
	return fmt.Sprintf("%s:payload:%s", namespace, hex.EncodeToString(sum[:]))
}
