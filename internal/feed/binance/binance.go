package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketnexus/internal/feed"
	"marketnexus/internal/market"

	"go.uber.org/zap"
)

const (
	feedName       = "binance"
	defaultBaseURL = "https://api.binance.com"
)

// supportedIntervals is the kline vocabulary Binance accepts.
var supportedIntervals = map[string]struct{}{
	"1m": {}, "3m": {}, "5m": {}, "15m": {}, "30m": {},
	"1h": {}, "2h": {}, "4h": {}, "6h": {}, "8h": {}, "12h": {},
	"1d": {}, "1w": {},
}

// Client fetches crypto quotes and klines from the Binance public API.
// Source symbols are Binance trading pairs (e.g. BTCUSDT).
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Name() string { return feedName }

// NormalizeInterval maps an arbitrary interval onto the Binance kline
// vocabulary, defaulting to 5m. It never errors on odd input.
func NormalizeInterval(interval string) string {
	v := interval
	if v == "60m" {
		v = "1h"
	}
	if _, ok := supportedIntervals[v]; ok {
		return v
	}
	return "5m"
}

type ticker24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
}

func (c *Client) Quote(ctx context.Context, sourceSymbol string) (market.Quote, error) {
	if sourceSymbol == "" {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, feed.ErrUnsupported)
	}
	endpoint := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", c.baseURL, sourceSymbol)

	var t ticker24h
	if err := c.getJSON(ctx, endpoint, sourceSymbol, &t); err != nil {
		return market.Quote{}, err
	}
	if t.LastPrice == "" {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}

	price := parseFloat(t.LastPrice)
	if price <= 0 {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}
	high := parseFloat(t.HighPrice)
	if high == 0 {
		high = price
	}
	low := parseFloat(t.LowPrice)
	if low == 0 {
		low = price
	}

	return market.Quote{
		Symbol:        market.Normalize(sourceSymbol),
		Name:          displayName(sourceSymbol),
		Price:         price,
		Change:        parseFloat(t.PriceChange),
		ChangePercent: parseFloat(t.PriceChangePercent),
		Volume:        int64(parseFloat(t.Volume)),
		DayHigh:       high,
		DayLow:        low,
		Timestamp:     time.Now().Unix(),
	}, nil
}

func (c *Client) Candles(ctx context.Context, sourceSymbol, interval string, limit int) (market.CandleSet, error) {
	if sourceSymbol == "" {
		return market.CandleSet{}, feed.Errf(feedName, sourceSymbol, feed.ErrUnsupported)
	}
	normalized := NormalizeInterval(interval)
	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, sourceSymbol, normalized, limit)

	// Kline rows are arrays of mixed numbers and strings.
	var rows [][]json.RawMessage
	if err := c.getJSON(ctx, endpoint, sourceSymbol, &rows); err != nil {
		return market.CandleSet{}, err
	}
	if len(rows) == 0 {
		return market.CandleSet{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}

	candles := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		openTime, err := rawInt(row[0])
		if err != nil {
			continue
		}
		candles = append(candles, market.Candle{
			Time:   openTime / 1000,
			Open:   rawFloat(row[1]),
			High:   rawFloat(row[2]),
			Low:    rawFloat(row[3]),
			Close:  rawFloat(row[4]),
			Volume: rawFloat(row[5]),
		})
	}
	if len(candles) == 0 {
		return market.CandleSet{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}

	return market.CandleSet{
		Symbol:   market.Normalize(sourceSymbol),
		Interval: interval,
		Source:   feedName,
		Candles:  candles,
	}, nil
}

// History derives daily closes from 1d klines; Binance has no separate
// history endpoint.
func (c *Client) History(ctx context.Context, sourceSymbol string, days int) ([]market.HistoryPoint, error) {
	set, err := c.Candles(ctx, sourceSymbol, "1d", days)
	if err != nil {
		return nil, err
	}
	points := make([]market.HistoryPoint, 0, len(set.Candles))
	for _, candle := range set.Candles {
		points = append(points, market.HistoryPoint{
			Date:   time.Unix(candle.Time, 0).UTC().Format("2006-01-02"),
			Close:  candle.Close,
			Volume: int64(candle.Volume),
		})
	}
	return points, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, sourceSymbol string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return feed.Errf(feedName, sourceSymbol, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return feed.Errf(feedName, sourceSymbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return feed.Errf(feedName, sourceSymbol, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return feed.Errf(feedName, sourceSymbol, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func displayName(pair string) string {
	switch {
	case strings.HasPrefix(pair, "BTC"):
		return "Bitcoin"
	case strings.HasPrefix(pair, "ETH"):
		return "Ethereum"
	default:
		return pair
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func rawFloat(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseFloat(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	return 0
}

func rawInt(raw json.RawMessage) (int64, error) {
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}
