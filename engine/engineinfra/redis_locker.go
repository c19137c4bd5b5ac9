package engineinfra

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// unlockScript borra la clave solo si el token sigue siendo el nuestro
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript renueva el TTL solo si el token sigue siendo el nuestro
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

const lockRetryInterval = 50 * time.Millisecond

// RedisLocker lock distribuido SET NX PX con token por dueño. Mientras el
// dueño no lo libera, el TTL se renueva cada ttl/3.
type RedisLocker struct {
	redis *redis.Client
	// wait tiempo máximo esperando un lock ocupado (0 = no esperar)
	wait time.Duration
}

var _ engine.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client *redis.Client, wait time.Duration) *RedisLocker {
	return &RedisLocker{redis: client, wait: wait}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (engine.UnlockFunc, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.redis.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, errx.Wrap(err, "failed to acquire lock", errx.TypeInternal).
				WithDetail("key", key)
		}
		if ok {
			stop := l.keepAlive(key, token, ttl)
			return l.unlockFunc(key, token, stop), nil
		}

		if !time.Now().Before(deadline) {
			return nil, engine.ErrLockNotAcquired().WithDetail("key", key)
		}

		select {
		case <-ctx.Done():
			return nil, engine.ErrLockNotAcquired().
				WithDetail("key", key).
				WithCause(ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

// keepAlive renueva el lease hasta que se llame a stop o se pierda el lock
func (l *RedisLocker) keepAlive(key, token string, ttl time.Duration) (stop func()) {
	done := make(chan struct{})
	interval := max(ttl/3, time.Millisecond)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), interval)
			extended, err := extendScript.Run(ctx, l.redis, []string{key}, token, ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				log.Printf("⚠️  Failed to extend lock %s: %v", key, err)
				continue
			}
			if extended == 0 {
				log.Printf("⚠️  Lock %s lost before release", key)
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (l *RedisLocker) unlockFunc(key, token string, stop func()) engine.UnlockFunc {
	return func(ctx context.Context) error {
		stop()
		if err := unlockScript.Run(ctx, l.redis, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return errx.Wrap(err, "failed to release lock", errx.TypeInternal).
				WithDetail("key", key)
		}
		return nil
	}
}
