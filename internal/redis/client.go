package redis

import (
	"context"
	"fmt"
	"time"

	"benome-realtime/config"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client for the configured instance.
func NewClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Ping verifies the client can reach Redis within a short deadline.
func Ping(ctx context.Context, client *goredis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
