package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"solTradeBot/internal/ports"
)

// RedisCache implements ports.PriceCache with plain string keys that expire on their own.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w: %w", addr, ports.ErrConnectionFailed, err)
	}
	return &RedisCache{rdb: rdb, prefix: "soltrader:price:"}, nil
}

func (c *RedisCache) key(token string) string {
	return c.prefix + token
}

func (c *RedisCache) SetPrice(ctx context.Context, token string, price float64, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.key(token), strconv.FormatFloat(price, 'f', -1, 64), ttl).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", token, err)
	}
	return nil
}

// GetPrice returns ports.ErrNotFound when the key is missing or expired.
func (c *RedisCache) GetPrice(ctx context.Context, token string) (float64, error) {
	raw, err := c.rdb.Get(ctx, c.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ports.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get price %s: %w", token, err)
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse price %s: %w", token, err)
	}
	return price, nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
