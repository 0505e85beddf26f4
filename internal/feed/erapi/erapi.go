package erapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"marketnexus/internal/feed"
	"marketnexus/internal/market"

	"go.uber.org/zap"
)

const (
	feedName       = "erapi"
	defaultBaseURL = "https://open.er-api.com/v6/latest"
)

// Client fetches FX rates from the open.er-api.com latest-rates endpoint.
// The endpoint serves spot rates only, so the change fields are computed
// against the previous rate observed by this process; the first observation
// reports zero change.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	lastPrice map[string]float64
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		lastPrice:  make(map[string]float64),
	}
}

func (c *Client) Name() string { return feedName }

type latestResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func (c *Client) Quote(ctx context.Context, sourceSymbol string) (market.Quote, error) {
	pair := strings.ToUpper(strings.TrimSuffix(sourceSymbol, "=X"))
	if len(pair) != 6 {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, feed.ErrUnsupported)
	}
	base, quote := pair[:3], pair[3:]

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, fmt.Errorf("decode response: %w", err))
	}
	if payload.Result != "success" {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, fmt.Errorf("api result %q", payload.Result))
	}

	rate, ok := payload.Rates[quote]
	if !ok || rate <= 0 {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}

	c.mu.Lock()
	previous := c.lastPrice[pair]
	c.lastPrice[pair] = rate
	c.mu.Unlock()

	change, changePct := 0.0, 0.0
	if previous != 0 {
		change = rate - previous
		changePct = change / previous * 100
	}

	return market.Quote{
		Symbol:        pair,
		Name:          base + "/" + quote,
		Price:         rate,
		Change:        change,
		ChangePercent: changePct,
		DayHigh:       rate,
		DayLow:        rate,
		Timestamp:     time.Now().Unix(),
	}, nil
}

// Candles is not served by this source; the chain advances past it.
func (c *Client) Candles(ctx context.Context, sourceSymbol, interval string, limit int) (market.CandleSet, error) {
	return market.CandleSet{}, feed.Errf(feedName, sourceSymbol, feed.ErrUnsupported)
}

// History is not served by this source; the chain advances past it.
func (c *Client) History(ctx context.Context, sourceSymbol string, days int) ([]market.HistoryPoint, error) {
	return nil, feed.Errf(feedName, sourceSymbol, feed.ErrUnsupported)
}
