package guardian

import (
	"context"
	"time"

	berrors "github.com/ClipFinance/bridge-lib/common/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// redisCmds is the subset of redis.Cmdable used by RedisCache.
type redisCmds interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client redisCmds
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates a cache over an existing client (*redis.Client, *redis.ClusterClient, ...).
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedisCache parses url, connects and pings the server.
func DialRedisCache(ctx context.Context, url string) (*RedisCache, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse redis URL")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, errors.Wrap(err, "failed to connect to redis")
	}
	return &RedisCache{client: rdb}, rdb, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, berrors.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return raw, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}
