package interfaces

import (
	"context"
	"time"
)

// CacheStore is the TTL-bounded cache consumed by the acquisition layer.
// An entry is logically absent once its TTL has elapsed; callers cannot
// distinguish expiry from true absence.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// KVStore is the raw synchronous key/value primitive underneath CacheStore,
// also used to persist watchlist snapshots and settings across sessions.
// TTL semantics live above this contract, not inside it.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
