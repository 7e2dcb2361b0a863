package topology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// MatrixCache stores computed matrices by network fingerprint.
type MatrixCache interface {
	Get(ctx context.Context, fingerprint string) (*Matrix, bool, error)
	Put(ctx context.Context, fingerprint string, m *Matrix) error
}

// RedisCache keeps matrices in Redis as JSON with a TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// NewRedisCacheFromURL parses a redis:// URL.
func NewRedisCacheFromURL(url string, ttl time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("matrix cache: parse redis url: %w", err)
	}
	return NewRedisCache(redis.NewClient(opt), ttl), nil
}

func (c *RedisCache) key(fp string) string { return "pdp:matrix:" + fp }

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*Matrix, bool, error) {
	b, err := c.rdb.Get(ctx, c.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("matrix cache: get: %w", err)
	}
	var m Matrix
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false, fmt.Errorf("matrix cache: decode: %w", err)
	}
	return &m, true, nil
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, m *Matrix) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("matrix cache: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(fingerprint), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("matrix cache: set: %w", err)
	}
	return nil
}
