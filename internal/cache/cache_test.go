package cache

import (
	"context"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	if got := Key("AAPL", "2026-08-28"); got != "AAPL:2026-08-28" {
		t.Errorf("Expected AAPL:2026-08-28, got %s", got)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(NewMemoryKV(), nil)
	ctx := context.Background()

	key := Key("AAPL", "2026-08-28")
	if err := store.Set(ctx, key, []byte(`{"price":123}`), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	payload, ok := store.Get(ctx, key)
	if !ok {
		t.Fatal("Expected a cache hit")
	}
	if string(payload) != `{"price":123}` {
		t.Errorf("Expected stored payload back, got %s", payload)
	}

	if _, ok := store.Get(ctx, Key("MSFT", "2026-08-28")); ok {
		t.Error("Expected a miss for a key never stored")
	}
}

func TestStoreExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	kv := NewMemoryKV()
	store := NewStore(kv, clock)
	ctx := context.Background()

	key := Key("AAPL", "2026-08-28")
	if err := store.Set(ctx, key, []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, ok := store.Get(ctx, key); !ok {
		t.Fatal("Expected a hit inside the TTL window")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get(ctx, key); ok {
		t.Error("Expected an expired entry to read as a miss")
	}

	// Expiry also deletes the underlying record.
	if raw, _ := kv.Get(ctx, key); raw != nil {
		t.Error("Expected expired entry deleted from the backing store")
	}
}

func TestStoreCorruptEntryReadsAsMiss(t *testing.T) {
	kv := NewMemoryKV()
	store := NewStore(kv, nil)
	ctx := context.Background()

	key := Key("AAPL", "2026-08-28")
	if err := kv.Set(ctx, key, []byte("not json")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if _, ok := store.Get(ctx, key); ok {
		t.Error("Expected a corrupt entry to read as a miss")
	}
	if raw, _ := kv.Get(ctx, key); raw != nil {
		t.Error("Expected corrupt entry deleted from the backing store")
	}
}

func TestStoreInvalidate(t *testing.T) {
	store := NewStore(NewMemoryKV(), nil)
	ctx := context.Background()

	key := Key("AAPL", "2026-08-28")
	if err := store.Set(ctx, key, []byte("payload"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, ok := store.Get(ctx, key); ok {
		t.Error("Expected a miss after invalidation")
	}
}

func TestMemoryKVCopiesValues(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	original := []byte("abc")
	if err := kv.Set(ctx, "k", original); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	original[0] = 'z'

	stored, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(stored) != "abc" {
		t.Errorf("Expected stored value isolated from caller mutation, got %s", stored)
	}

	stored[0] = 'z'
	again, _ := kv.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("Expected returned value isolated from reader mutation, got %s", again)
	}
}
