package erapi

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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, 2*time.Second, zap.NewNop())
}

func TestQuoteFirstObservationHasZeroChange(t *testing.T) {
	rate := 1.0850
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/EUR") {
			t.Errorf("expected base currency in path, got %q", r.URL.Path)
		}
		fmt.Fprintf(w, `{"result":"success","rates":{"USD":%v}}`, rate)
	})

	q, err := client.Quote(context.Background(), "EURUSD=X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 1.0850 {
		t.Errorf("price = %v", q.Price)
	}
	if q.Change != 0 {
		t.Errorf("first observation should report zero change, got %v", q.Change)
	}
	if q.Name != "EUR/USD" {
		t.Errorf("name = %q", q.Name)
	}

	// Second observation reports the delta against the first.
	rate = 1.0900
	q2, err := client.Quote(context.Background(), "EURUSD=X")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := q2.Change - 0.0050; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("change = %v, want 0.0050", q2.Change)
	}
}

func TestQuoteRejectsNonPairSymbols(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for unsupported symbol")
	})

	_, err := client.Quote(context.Background(), "AAPL")
	if !errors.Is(err, feed.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestQuoteMissingRate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":"success","rates":{"GBP":0.85}}`)
	})

	_, err := client.Quote(context.Background(), "EURUSD=X")
	if !errors.Is(err, feed.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCandlesUnsupported(t *testing.T) {
	client := New("", time.Second, zap.NewNop())
	if _, err := client.Candles(context.Background(), "EURUSD=X", "1d", 10); !errors.Is(err, feed.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if _, err := client.History(context.Background(), "EURUSD=X", 30); !errors.Is(err, feed.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
