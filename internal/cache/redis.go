package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"breakout-scanner/internal/interfaces"
)

// RedisKV backs the cache and session persistence with Redis so state
// survives process restarts. Keys get a hard 48h Redis expiry as a bound;
// the logical TTL is still enforced by the Store envelope above.
type RedisKV struct {
	client *redis.Client
	prefix string
}

var _ interfaces.KVStore = (*RedisKV)(nil)

const redisHardExpiry = 48 * time.Hour

func NewRedisKV(addr, password string, db int) *RedisKV {
	return &RedisKV{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: "scanner:",
	}
}

// Ping verifies connectivity, used at composition time to fall back to the
// in-memory store when Redis is unreachable.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, redisHardExpiry).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
