package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

// newTestLayer builds a Layer without calling Connect, so it runs purely on
// the in-process map.
func newTestLayer() *Layer {
	return New(Config{Addr: "127.0.0.1:1"}, zap.NewNop())
}

func TestSetGetRoundTrip(t *testing.T) {
	l := newTestLayer()
	ctx := context.Background()

	type payload struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	l.Set(ctx, "quote:BTC", payload{Symbol: "BTC", Price: 43000.5}, time.Minute)

	var got payload
	if err := l.GetObject(ctx, "quote:BTC", &got); err != nil {
		t.Fatalf("unexpected miss: %v", err)
	}
	if got.Symbol != "BTC" || got.Price != 43000.5 {
		t.Fatalf("round trip corrupted value: %+v", got)
	}
}

func TestMissReturnsErrMiss(t *testing.T) {
	l := newTestLayer()

	if _, err := l.Get(context.Background(), "quote:NOPE"); err != ErrMiss {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	l := newTestLayer()
	ctx := context.Background()

	l.Set(ctx, "short", "value", 100*time.Millisecond)
	if _, err := l.Get(ctx, "short"); err != nil {
		t.Fatalf("value should be present before expiry: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if _, err := l.Get(ctx, "short"); err != ErrMiss {
		t.Fatalf("expected ErrMiss after expiry, got %v", err)
	}
}

func TestGetManyPartial(t *testing.T) {
	l := newTestLayer()
	ctx := context.Background()

	l.Set(ctx, "a", 1, time.Minute)
	l.Set(ctx, "c", 3, time.Minute)

	got := l.GetMany(ctx, []string{"a", "b", "c"})
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}
	if _, ok := got["b"]; ok {
		t.Fatal("missing key should be absent from result")
	}
}

func TestSetMany(t *testing.T) {
	l := newTestLayer()
	ctx := context.Background()

	l.SetMany(ctx, map[string]any{"x": "1", "y": "2"}, time.Minute)

	got := l.GetMany(ctx, []string{"x", "y"})
	if len(got) != 2 {
		t.Fatalf("expected both keys present, got %d", len(got))
	}
}

func TestInvalidate(t *testing.T) {
	l := newTestLayer()
	ctx := context.Background()

	l.Set(ctx, "gone", "v", time.Minute)
	l.Invalidate(ctx, "gone")
	if _, err := l.Get(ctx, "gone"); err != ErrMiss {
		t.Fatalf("expected ErrMiss after invalidate, got %v", err)
	}
}

func TestCorruptPayloadCountsAsMiss(t *testing.T) {
	l := newTestLayer()
	ctx := context.Background()

	l.memory.set("bad", []byte("{not json"), time.Now().Add(time.Minute))

	var out map[string]string
	if err := l.GetObject(ctx, "bad", &out); err != ErrMiss {
		t.Fatalf("expected ErrMiss for corrupt payload, got %v", err)
	}
}

func TestStatsDegraded(t *testing.T) {
	l := newTestLayer()
	l.Set(context.Background(), "k", "v", time.Minute)

	stats := l.Stats()
	if stats.Backend != "memory" {
		t.Fatalf("expected memory backend without redis, got %q", stats.Backend)
	}
	if stats.MemoryKeys != 1 {
		t.Fatalf("expected 1 memory key, got %d", stats.MemoryKeys)
	}
}
