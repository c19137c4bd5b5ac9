package database

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/flowpilot/pkg/config"
	"github.com/go-redis/redis/v8"
)

// NewRedisClient crea el cliente de Redis usado para locks, idempotencia y eventos
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errx.Wrap(err, "failed to connect to redis", errx.TypeInternal).
			WithDetail("addr", cfg.GetAddr())
	}

	logx.Info("redis client ready (%s db=%d)", cfg.GetAddr(), cfg.DB)
	return client, nil
}

// CloseRedis cierra la conexión a Redis
func CloseRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
