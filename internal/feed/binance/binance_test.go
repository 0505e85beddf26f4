package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketnexus/internal/feed"

	"go.uber.org/zap"
)

const tickerFixture = `{
	"symbol": "BTCUSDT",
	"lastPrice": "43250.50",
	"priceChange": "450.50",
	"priceChangePercent": "1.05",
	"highPrice": "43500.00",
	"lowPrice": "42500.00",
	"volume": "28500.12"
}`

const klinesFixture = `[
	[1700000000000, "42000.0", "42600.0", "41800.0", "42500.0", "1000.5", 1700003599999, "0", 0, "0", "0", "0"],
	[1700003600000, "42500.0", "43500.0", "42400.0", "43250.5", "2000.75", 1700007199999, "0", 0, "0", "0", "0"]
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, 2*time.Second, zap.NewNop())
}

func TestQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "BTCUSDT" {
			t.Errorf("unexpected symbol %q", r.URL.Query().Get("symbol"))
		}
		fmt.Fprint(w, tickerFixture)
	})

	q, err := client.Quote(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 43250.50 {
		t.Errorf("price = %v", q.Price)
	}
	if q.Name != "Bitcoin" {
		t.Errorf("name = %q", q.Name)
	}
	if q.ChangePercent != 1.05 {
		t.Errorf("change percent = %v", q.ChangePercent)
	}
	if q.Volume != 28500 {
		t.Errorf("volume = %d", q.Volume)
	}
}

func TestQuoteEmptySymbolUnsupported(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty symbol")
	})

	_, err := client.Quote(context.Background(), "")
	if !errors.Is(err, feed.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestCandles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1h" {
			t.Errorf("interval = %q, want 1h", r.URL.Query().Get("interval"))
		}
		fmt.Fprint(w, klinesFixture)
	})

	set, err := client.Candles(context.Background(), "BTCUSDT", "1h", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(set.Candles))
	}
	first := set.Candles[0]
	if first.Time != 1700000000 {
		t.Errorf("time = %d, want unix seconds", first.Time)
	}
	if first.Open != 42000.0 || first.Close != 42500.0 {
		t.Errorf("ohlc = %+v", first)
	}
}

func TestHistoryDerivedFromDailyKlines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "1d" {
			t.Errorf("history must request 1d klines, got %q", r.URL.Query().Get("interval"))
		}
		fmt.Fprint(w, klinesFixture)
	})

	points, err := client.History(context.Background(), "BTCUSDT", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Date != "2023-11-14" {
		t.Errorf("date = %q", points[0].Date)
	}
}

func TestNormalizeInterval(t *testing.T) {
	cases := map[string]string{
		"1m":      "1m",
		"60m":     "1h",
		"1w":      "1w",
		"garbage": "5m",
	}
	for in, want := range cases {
		if got := NormalizeInterval(in); got != want {
			t.Errorf("NormalizeInterval(%q) = %q, want %q", in, got, want)
		}
	}
}
