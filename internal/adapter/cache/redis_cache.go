package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/order-placement-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "order:"

// RedisOrderCache — кэш заказов в Redis, общий для нескольких экземпляров сервиса.
type RedisOrderCache struct {
	Client *redis.Client
	TTL    time.Duration
	Log    *zap.Logger
}

func NewRedisOrderCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisOrderCache {
	return &RedisOrderCache{Client: client, TTL: ttl, Log: log}
}

// Get считает любую ошибку Redis промахом: заказ дочитается из репозитория.
func (c *RedisOrderCache) Get(ctx context.Context, id string) (domain.Order, bool) {
	raw, err := c.Client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.Log.Warn("redis get", zap.String("order_id", id), zap.Error(err))
		}
		return domain.Order{}, false
	}
	var o domain.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		// пропускаем битую запись
		c.Log.Warn("corrupted cached order", zap.String("order_id", id), zap.Error(err))
		return domain.Order{}, false
	}
	return o, true
}

func (c *RedisOrderCache) Set(ctx context.Context, o domain.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	if err := c.Client.Set(ctx, keyPrefix+o.ID.String(), raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

var _ domain.OrderCache = (*RedisOrderCache)(nil)
