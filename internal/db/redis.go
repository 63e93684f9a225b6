package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/offloader/service/internal/logger"
)

// ConnectRedis creates a Redis client from a redis:// URL and verifies the
// connection.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Log.Info().Str("addr", opts.Addr).Msg("connected to redis")
	return client, nil
}
