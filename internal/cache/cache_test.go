package cache

import (
	"context"
	"testing"
	"time"
)

type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

type payload struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache()

	in := payload{Balance: 1500, Currency: "INR"}
	if err := SetJSON(ctx, c, "k1", in, time.Minute); err != nil {
		t.Fatalf("SetJSON error: %v", err)
	}

	var out payload
	if !GetJSON(ctx, c, "k1", &out) {
		t.Fatal("expected cache hit")
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestGetJSONMissAndCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c := newMemoryCache()

	var out payload
	if GetJSON(ctx, c, "missing", &out) {
		t.Fatal("miss must report false")
	}

	c.data["bad"] = []byte("{not json")
	if GetJSON(ctx, c, "bad", &out) {
		t.Fatal("unreadable entry must report a miss")
	}
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	c := NewNoop()

	if err := SetJSON(ctx, c, "k", payload{Balance: 1}, time.Minute); err != nil {
		t.Fatalf("SetJSON error: %v", err)
	}
	var out payload
	if GetJSON(ctx, c, "k", &out) {
		t.Fatal("noop cache must never hit")
	}
}
