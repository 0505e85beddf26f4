package stooq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketnexus/internal/feed"

	"go.uber.org/zap"
)

const liveFixture = "Symbol,Date,Time,Open,High,Low,Close,Volume,Prev,Name\n" +
	"AAPL.US,2026-08-28,22:00:11,230.1,233.4,229.0,232.5,41200000,228.9,APPLE\n"

const historyFixture = "Date,Open,High,Low,Close,Volume\n" +
	"2026-08-26,229.0,231.0,228.5,230.2,39000000\n" +
	"2026-08-27,230.5,232.0,229.8,231.1,37000000\n" +
	"2026-08-28,231.0,233.4,229.0,232.5,41200000\n"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, 2*time.Second, zap.NewNop())
}

func TestQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "s=aapl.us") {
			t.Errorf("expected lowercase symbol in query, got %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, liveFixture)
	})

	q, err := client.Quote(context.Background(), "AAPL.US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 232.5 {
		t.Errorf("price = %v", q.Price)
	}
	if q.Name != "APPLE" {
		t.Errorf("name = %q", q.Name)
	}
	wantChange := 232.5 - 228.9
	if diff := q.Change - wantChange; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("change = %v, want %v", q.Change, wantChange)
	}
	if q.Volume != 41200000 {
		t.Errorf("volume = %d", q.Volume)
	}
}

func TestQuoteNoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Symbol,Date,Time,Open,High,Low,Close,Volume,Prev,Name\n"+
			"NOPE,N/D,N/D,N/D,N/D,N/D,N/D,N/D,N/D,NOPE\n")
	})

	_, err := client.Quote(context.Background(), "NOPE")
	if !errors.Is(err, feed.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCandlesDaily(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, historyFixture)
	})

	set, err := client.Candles(context.Background(), "AAPL.US", "1d", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Interval != "1d" {
		t.Errorf("interval = %q", set.Interval)
	}
	// limit applies to the tail of the series
	if len(set.Candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(set.Candles))
	}
	if set.Candles[1].Close != 232.5 {
		t.Errorf("last close = %v", set.Candles[1].Close)
	}
}

func TestHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, historyFixture)
	})

	points, err := client.History(context.Background(), "AAPL.US", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Date != "2026-08-26" {
		t.Errorf("first date = %q", points[0].Date)
	}
}

func TestHistoryEmptyBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n")
	})

	_, err := client.History(context.Background(), "XXXX", 30)
	if !errors.Is(err, feed.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
