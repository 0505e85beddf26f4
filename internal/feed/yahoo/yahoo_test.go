package yahoo

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

const chartFixture = `{
	"chart": {
		"result": [{
			"meta": {
				"symbol": "BTC-USD",
				"shortName": "Bitcoin USD",
				"regularMarketPrice": 43250.5,
				"chartPreviousClose": 42800.0,
				"regularMarketDayHigh": 43500.0,
				"regularMarketDayLow": 42500.0,
				"regularMarketVolume": 123456789
			},
			"timestamp": [1700000000, 1700086400, 1700172800],
			"indicators": {
				"quote": [{
					"open":   [42000.0, 42500.0, null],
					"high":   [42600.0, 43500.0, null],
					"low":    [41800.0, 42400.0, null],
					"close":  [42500.0, 43250.5, null],
					"volume": [1000.0, 2000.0, null]
				}]
			}
		}],
		"error": null
	}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, 2*time.Second, zap.NewNop())
}

func TestQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a user agent header")
		}
		fmt.Fprint(w, chartFixture)
	})

	q, err := client.Quote(context.Background(), "BTC-USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Symbol != "BTC-USD" {
		t.Errorf("symbol = %q", q.Symbol)
	}
	if q.Price != 43250.5 {
		t.Errorf("price = %v", q.Price)
	}
	if q.Change != 450.5 {
		t.Errorf("change = %v", q.Change)
	}
	if q.Name != "Bitcoin USD" {
		t.Errorf("name = %q", q.Name)
	}
	if q.DayHigh != 43500.0 || q.DayLow != 42500.0 {
		t.Errorf("day range = %v/%v", q.DayHigh, q.DayLow)
	}
}

func TestCandlesSkipNullBars(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartFixture)
	})

	set, err := client.Candles(context.Background(), "BTC-USD", "1d", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The third bar is all nulls and must be dropped.
	if len(set.Candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(set.Candles))
	}
	if set.Source != "yahoo" {
		t.Errorf("source = %q", set.Source)
	}
	if set.Candles[1].Close != 43250.5 {
		t.Errorf("last close = %v", set.Candles[1].Close)
	}
}

func TestQuoteChartError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	})

	_, err := client.Quote(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("expected error for chart error payload")
	}
	var fe *feed.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *feed.FetchError, got %T", err)
	}
	if fe.Feed != "yahoo" {
		t.Errorf("feed = %q", fe.Feed)
	}
}

func TestQuoteServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	if _, err := client.Quote(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestNormalizeInterval(t *testing.T) {
	cases := map[string]string{
		"1m":      "1m",
		"60m":     "1h",
		"4h":      "1h",
		"1d":      "1d",
		"garbage": "5m",
		"":        "5m",
	}
	for in, want := range cases {
		if got := NormalizeInterval(in); got != want {
			t.Errorf("NormalizeInterval(%q) = %q, want %q", in, got, want)
		}
	}
}
