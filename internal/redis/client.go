package redis

import (
	"context"
	"fmt"

	"collabchat/internal/config"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient opens a Redis connection and verifies it with a ping. The
// client is injected into the presence store and rate limiter rather
// than held as a package global.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
