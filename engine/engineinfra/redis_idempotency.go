package engineinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/go-redis/redis/v8"
)

const idempotencyPrefix = "flowpilot:turn:"

// RedisIdempotencyStore claves de turnos ya consumidos, con TTL
type RedisIdempotencyStore struct {
	redis *redis.Client
}

var _ engine.IdempotencyStore = (*RedisIdempotencyStore)(nil)

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{redis: client}
}

func (s *RedisIdempotencyStore) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, idempotencyPrefix+key).Result()
	if err != nil {
		return false, errx.Wrap(err, "failed to check idempotency key", errx.TypeInternal).
			WithDetail("key", key)
	}
	return n > 0, nil
}

func (s *RedisIdempotencyStore) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, idempotencyPrefix+key, time.Now().Unix(), ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to mark idempotency key", errx.TypeInternal).
			WithDetail("key", key)
	}
	return nil
}
