package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache maps Telegram ids to internal user ids. The mapping never changes for a
// live user, so entries only need dropping on delete.
type Cache interface {
	Get(ctx context.Context, telegramID int64) (uint, bool)
	Set(ctx context.Context, telegramID int64, userID uint)
	Delete(ctx context.Context, telegramID int64)
}

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log logrus.FieldLogger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, log: log.WithField("component", "identity_cache")}
}

func cacheKey(telegramID int64) string {
	return fmt.Sprintf("identity:tg:%d", telegramID)
}

func (c *RedisCache) Get(ctx context.Context, telegramID int64) (uint, bool) {
	id, err := c.rdb.Get(ctx, cacheKey(telegramID)).Uint64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).Warn("cache read failed")
		}
		return 0, false
	}
	return uint(id), true
}

func (c *RedisCache) Set(ctx context.Context, telegramID int64, userID uint) {
	if err := c.rdb.Set(ctx, cacheKey(telegramID), uint64(userID), c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("cache write failed")
	}
}

func (c *RedisCache) Delete(ctx context.Context, telegramID int64) {
	if err := c.rdb.Del(ctx, cacheKey(telegramID)).Err(); err != nil {
		c.log.WithError(err).Warn("cache delete failed")
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (uint, bool) { return 0, false }
func (noopCache) Set(context.Context, int64, uint)        {}
func (noopCache) Delete(context.Context, int64)           {}
