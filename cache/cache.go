// Package cache keeps recently read products in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	models "commerce-api/model"

	"github.com/redis/go-redis/v9"
)

const (
	productKeyPrefix = "commerce:product:"
	versionKeyPrefix = "commerce:product-version:"
)

// setIfVersionScript stores ARGV[2] under KEYS[1] for ARGV[3] milliseconds
// only while the version counter KEYS[2] still equals ARGV[1].
const setIfVersionScript = `
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`

// invalidateScript takes (product key, version key) pairs, drops each
// product and bumps its version.
const invalidateScript = `
for i = 1, #KEYS, 2 do
	redis.call('DEL', KEYS[i])
	redis.call('INCR', KEYS[i + 1])
end
return #KEYS / 2
`

// ProductCache is a read-through cache for single products. A miss is
// reported as (nil, false, nil).
//
// A reader takes Version before loading a product from the store and hands
// it to Set; Set skips the write when Invalidate ran in between, so a fill
// racing with a committed change never stores the older copy.
type ProductCache interface {
	Get(ctx context.Context, id string) (*models.Product, bool, error)
	Version(ctx context.Context, id string) (int64, error)
	Set(ctx context.Context, p *models.Product, version int64) error
	Invalidate(ctx context.Context, ids ...string) error
	Close() error
}

// client is the part of *redis.Client the cache uses.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Close() error
}

type RedisProductCache struct {
	client client
	ttl    time.Duration
}

func NewRedisProductCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisProductCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	c := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisProductCache{client: c, ttl: ttl}, nil
}

func productKey(id string) string { return productKeyPrefix + id }
func versionKey(id string) string { return versionKeyPrefix + id }

func (c *RedisProductCache) Get(ctx context.Context, id string) (*models.Product, bool, error) {
	data, err := c.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read product %s: %w", id, err)
	}

	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("failed to decode product %s: %w", id, err)
	}
	return &p, true, nil
}

// Version returns the invalidation counter of id; 0 when it was never invalidated.
func (c *RedisProductCache) Version(ctx context.Context, id string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read version of product %s: %w", id, err)
	}
	return v, nil
}

// Set stores p unless it was invalidated after version was taken.
func (c *RedisProductCache) Set(ctx context.Context, p *models.Product, version int64) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	keys := []string{productKey(p.ID), versionKey(p.ID)}
	err = c.client.Eval(ctx, setIfVersionScript, keys,
		strconv.FormatInt(version, 10), data, c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to store product %s: %w", p.ID, err)
	}
	return nil
}

func (c *RedisProductCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id), versionKey(id))
	}
	return c.client.Eval(ctx, invalidateScript, keys).Err()
}

func (c *RedisProductCache) Close() error {
	return c.client.Close()
}

// NopProductCache never holds anything.
type NopProductCache struct{}

func (NopProductCache) Get(context.Context, string) (*models.Product, bool, error) {
	return nil, false, nil
}
func (NopProductCache) Version(context.Context, string) (int64, error)    { return 0, nil }
func (NopProductCache) Set(context.Context, *models.Product, int64) error { return nil }
func (NopProductCache) Invalidate(context.Context, ...string) error       { return nil }
func (NopProductCache) Close() error                                      { return nil }
