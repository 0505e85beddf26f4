package synthetic

import (
	"context"
	"testing"
	"time"

	"marketnexus/internal/market"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestQuoteNeverFails(t *testing.T) {
	client := NewWithClock(fixedClock())

	q, err := client.Quote(context.Background(), "ANYTHING")
	if err != nil {
		t.Fatalf("synthetic quote must never fail: %v", err)
	}
	if q.Price <= 0 {
		t.Fatalf("price must be positive, got %v", q.Price)
	}
	if !q.IsSynthetic() {
		t.Fatalf("quote must be tagged as synthetic, name = %q", q.Name)
	}
}

func TestQuoteDeterministicWithinSecond(t *testing.T) {
	client := NewWithClock(fixedClock())

	a, _ := client.Quote(context.Background(), "BTC")
	b, _ := client.Quote(context.Background(), "BTC")
	if a.Price != b.Price {
		t.Fatalf("same symbol and instant should agree: %v vs %v", a.Price, b.Price)
	}

	other, _ := client.Quote(context.Background(), "ETHX")
	if other.Price == a.Price {
		t.Fatal("different symbols should not collide on price")
	}
}

func TestCandlesShape(t *testing.T) {
	client := NewWithClock(fixedClock())

	set, err := client.Candles(context.Background(), "BTC", "5m", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Source != "mock" {
		t.Errorf("source = %q, want mock", set.Source)
	}
	if len(set.Candles) != 50 {
		t.Fatalf("expected 50 candles, got %d", len(set.Candles))
	}
	for i, candle := range set.Candles {
		if candle.High < candle.Low {
			t.Fatalf("candle %d: high %v below low %v", i, candle.High, candle.Low)
		}
		if candle.Close <= 0 {
			t.Fatalf("candle %d: non-positive close %v", i, candle.Close)
		}
		if i > 0 && candle.Time <= set.Candles[i-1].Time {
			t.Fatalf("candle %d: timestamps must ascend", i)
		}
	}
}

func TestHistoryEndsToday(t *testing.T) {
	client := NewWithClock(fixedClock())

	points, err := client.History(context.Background(), "AAPL", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 30 {
		t.Fatalf("expected 30 points, got %d", len(points))
	}
	if points[len(points)-1].Date != "2026-08-28" {
		t.Errorf("last date = %q, want clock date", points[len(points)-1].Date)
	}
}

func TestQuoteUsesNormalizedSymbol(t *testing.T) {
	client := NewWithClock(fixedClock())

	q, _ := client.Quote(context.Background(), " btc ")
	if q.Symbol != market.Normalize(" btc ") {
		t.Errorf("symbol = %q", q.Symbol)
	}
}
