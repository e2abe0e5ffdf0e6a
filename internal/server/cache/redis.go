package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache stores entries in Redis with a fixed TTL.
type RedisCache struct {
	client redisClient
	ttl    time.Duration
	logger logging.Logger
}

// NewRedisCache connects to addr and verifies it with PING.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration, logger logging.Logger) (*RedisCache, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return newRedisCache(client, ttl, logger), client, nil
}

func newRedisCache(client redisClient, ttl time.Duration, logger logging.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger.With("module", "redis_cache")}
}

func (c *RedisCache) get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

func (c *RedisCache) GetImages(ctx context.Context, userID string, category models.Category) ([]models.RecordDescriptor, bool, error) {
	return getJSON[[]models.RecordDescriptor](ctx, c, imagesKey(userID, category))
}

func (c *RedisCache) SetImages(ctx context.Context, userID string, category models.Category, images []models.RecordDescriptor) error {
	return setJSON(ctx, c, imagesKey(userID, category), images)
}

func (c *RedisCache) GetStats(ctx context.Context, userID string) (models.UserStats, bool, error) {
	return getJSON[models.UserStats](ctx, c, statsKey(userID))
}

func (c *RedisCache) SetStats(ctx context.Context, userID string, stats models.UserStats) error {
	return setJSON(ctx, c, statsKey(userID), stats)
}

func (c *RedisCache) InvalidateUser(ctx context.Context, userID string) {
	if err := c.client.Del(ctx, userKeys(userID)...).Err(); err != nil {
		c.logger.Warn(ctx, "cache invalidation failed", "user_id", userID, "error", err)
	}
}

var _ Cache = (*RedisCache)(nil)
