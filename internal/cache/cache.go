package cache

import (
	"context"
	"encoding/json"
	"time"

	"breakout-scanner/internal/interfaces"
)

// entry is the stored envelope. TTL is enforced here, above the KV
// primitive, so expiry behaves identically on every backend.
type entry struct {
	Key      string        `json:"key"`
	Payload  []byte        `json:"payload"`
	StoredAt time.Time     `json:"stored_at"`
	TTL      time.Duration `json:"ttl"`
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.StoredAt) > e.TTL
}

// Key derives the canonical cache key for a ticker on a trading day.
// Partitioning by day means yesterday's entries go stale at the day
// boundary without explicit cleanup.
func Key(ticker, tradingDay string) string {
	return ticker + ":" + tradingDay
}

// Store implements the TTL cache contract over any KVStore. Expired
// entries are indistinguishable from absent ones and are deleted lazily
// on read.
type Store struct {
	kv  interfaces.KVStore
	now func() time.Time
}

var _ interfaces.CacheStore = (*Store)(nil)

// NewStore wraps kv in TTL semantics. now is injectable for tests; pass
// nil for wall-clock time.
func NewStore(kv interfaces.KVStore, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{kv: kv, now: now}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil || raw == nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// unreadable entries are treated as absent
		_ = s.kv.Delete(ctx, key)
		return nil, false
	}
	if e.expired(s.now()) {
		_ = s.kv.Delete(ctx, key)
		return nil, false
	}
	return e.Payload, true
}

func (s *Store) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	e := entry{
		Key:      key,
		Payload:  payload,
		StoredAt: s.now(),
		TTL:      ttl,
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, raw)
}

func (s *Store) Invalidate(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, key)
}
