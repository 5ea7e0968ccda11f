package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSnapshotCache keeps snapshots as JSON strings with a native TTL.
type RedisSnapshotCache struct {
	redis  *redis.Client
	prefix string
}

// NewRedisSnapshotCache wraps client. Keys are prefixed with "podology:".
func NewRedisSnapshotCache(client *redis.Client) *RedisSnapshotCache {
	if client == nil {
		panic("analytics: redis client required")
	}
	return &RedisSnapshotCache{redis: client, prefix: "podology:"}
}

func (c *RedisSnapshotCache) Load(ctx context.Context, key string) (*KPIs, error) {
	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotMiss
	}
	if err != nil {
		return nil, fmt.Errorf("analytics: redis get: %w", err)
	}
	var k KPIs
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, ErrSnapshotMiss
	}
	return &k, nil
}

func (c *RedisSnapshotCache) Store(ctx context.Context, key string, kpis *KPIs, ttl time.Duration) error {
	data, err := json.Marshal(kpis)
	if err != nil {
		return fmt.Errorf("analytics: marshal snapshot: %w", err)
	}
	if err := c.redis.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("analytics: redis set: %w", err)
	}
	return nil
}
