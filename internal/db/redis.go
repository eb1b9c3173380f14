package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockNotAcquired is returned when a lock stays held by another owner
// for the whole wait.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Lock defaults.
const (
	DefaultLockTTL   = 30 * time.Second
	DefaultLockWait  = 10 * time.Second
	lockRetryBackoff = 50 * time.Millisecond
	lockKeyPrefix    = "owsetup:lock:"
)

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore wraps a redis client. It provides the distributed lock that
// serializes targeting get-or-create across setup processes.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
	Wait   time.Duration
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(ctx context.Context, addr string) (*RedisStore, error) {
	rs := NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}))

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

// NewRedisStore wraps an existing client with default lock timings.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Client: client, TTL: DefaultLockTTL, Wait: DefaultLockWait}
}

// Lock acquires the named lock, polling until Wait elapses or ctx ends. The
// returned unlock releases it only if this caller still holds it.
func (r *RedisStore) Lock(ctx context.Context, name string) (func(), error) {
	key := lockKeyPrefix + name
	token := uuid.New().String()
	deadline := time.Now().Add(r.Wait)

	for {
		ok, err := r.Client.SetNX(ctx, key, token, r.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return func() {
				// release on a fresh context so a cancelled run still frees the lock
				if err := releaseScript.Run(context.Background(), r.Client, []string{key}, token).Err(); err != nil {
					zap.L().Warn("release lock", zap.String("lock", name), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, name)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
