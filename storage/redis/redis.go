package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/config"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/errs"
	"github.com/redis/go-redis/v9"
)

// Cache keeps JSON snapshots for a short TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func New(cfg config.CacheConfig, log *slog.Logger) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.TTL, log)
}

func NewWithClient(client *redis.Client, ttl time.Duration, log *slog.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func (c *Cache) Ping(ctx context.Context) error {
	const op = "storage.redis.Ping"

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get decodes the value under key into dst. A missing key yields errs.ErrNotFound.
func (c *Cache) Get(ctx context.Context, key string, dst any) error {
	const op = "storage.redis.Get"

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errs.ErrNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%s: corrupted entry %q: %w", op, key, err)
	}

	return nil
}

func (c *Cache) Set(ctx context.Context, key string, value any) error {
	const op = "storage.redis.Set"

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (c *Cache) Close() {
	c.log.Info("closing redis cache...")
	if err := c.client.Close(); err != nil {
		c.log.Warn("error closing redis client", "error", err)
		return
	}
	c.log.Info("redis cache closed")
}
