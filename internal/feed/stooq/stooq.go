package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketnexus/internal/feed"
	"marketnexus/internal/market"

	"go.uber.org/zap"
)

const (
	feedName       = "stooq"
	defaultBaseURL = "https://stooq.com"

	// liveFields selects symbol, date, time, OHLC, volume, previous close
	// and name columns from the live endpoint.
	liveFields = "sd2t2ohlcvpn"
)

// Client fetches quotes and daily data from Stooq's CSV endpoints.
// Source symbols are Stooq identifiers (e.g. AAPL.US, ^SPX, BTCUSD).
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

func (c *Client) Quote(ctx context.Context, sourceSymbol string) (market.Quote, error) {
	endpoint := fmt.Sprintf("%s/q/l/?s=%s&f=%s&h&e=csv",
		c.baseURL, url.QueryEscape(strings.ToLower(sourceSymbol)), liveFields)

	rows, err := c.fetchCSV(ctx, endpoint, sourceSymbol)
	if err != nil {
		return market.Quote{}, err
	}
	if len(rows) == 0 {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}
	row := rows[0]

	price, ok := field(row, "Close")
	if !ok || price <= 0 {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}

	prev, ok := field(row, "Prev")
	if !ok || prev == 0 {
		prev, _ = field(row, "Open")
	}
	change, changePct := 0.0, 0.0
	if prev != 0 {
		change = price - prev
		changePct = change / prev * 100
	}

	high, ok := field(row, "High")
	if !ok || high == 0 {
		high = price
	}
	low, ok := field(row, "Low")
	if !ok || low == 0 {
		low = price
	}
	volume, _ := field(row, "Volume")

	name := strings.TrimSpace(row["Name"])
	if name == "" {
		name = sourceSymbol
	}
	symbol := strings.TrimSpace(row["Symbol"])
	if symbol == "" {
		symbol = sourceSymbol
	}

	return market.Quote{
		Symbol:        market.Normalize(symbol),
		Name:          name,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		Volume:        int64(volume),
		DayHigh:       high,
		DayLow:        low,
		Timestamp:     time.Now().Unix(),
	}, nil
}

// Candles serves daily bars from the history endpoint. Stooq has no intraday
// data; the provider only routes 1d requests here.
func (c *Client) Candles(ctx context.Context, sourceSymbol, interval string, limit int) (market.CandleSet, error) {
	rows, err := c.fetchHistoryRows(ctx, sourceSymbol)
	if err != nil {
		return market.CandleSet{}, err
	}

	candles := make([]market.Candle, 0, limit)
	for _, row := range rows {
		date := strings.TrimSpace(row["Date"])
		o, okO := field(row, "Open")
		h, okH := field(row, "High")
		lo, okL := field(row, "Low")
		cl, okC := field(row, "Close")
		if date == "" || !okO || !okH || !okL || !okC {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			continue
		}
		volume, _ := field(row, "Volume")
		candles = append(candles, market.Candle{
			Time:   t.Unix(),
			Open:   o,
			High:   h,
			Low:    lo,
			Close:  cl,
			Volume: volume,
		})
	}
	if len(candles) == 0 {
		return market.CandleSet{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	return market.CandleSet{
		Symbol:   market.Normalize(sourceSymbol),
		Interval: "1d",
		Source:   feedName,
		Candles:  candles,
	}, nil
}

func (c *Client) History(ctx context.Context, sourceSymbol string, days int) ([]market.HistoryPoint, error) {
	rows, err := c.fetchHistoryRows(ctx, sourceSymbol)
	if err != nil {
		return nil, err
	}

	points := make([]market.HistoryPoint, 0, days)
	for _, row := range rows {
		date := strings.TrimSpace(row["Date"])
		cl, ok := field(row, "Close")
		if date == "" || !ok {
			continue
		}
		volume, _ := field(row, "Volume")
		points = append(points, market.HistoryPoint{
			Date:   date,
			Close:  cl,
			Volume: int64(volume),
		})
	}
	if len(points) == 0 {
		return nil, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}
	if len(points) > days {
		points = points[len(points)-days:]
	}
	return points, nil
}

func (c *Client) fetchHistoryRows(ctx context.Context, sourceSymbol string) ([]map[string]string, error) {
	endpoint := fmt.Sprintf("%s/q/d/l/?s=%s&i=d",
		c.baseURL, url.QueryEscape(strings.ToLower(sourceSymbol)))
	return c.fetchCSV(ctx, endpoint, sourceSymbol)
}

// fetchCSV reads a headered CSV response into one map per row.
func (c *Client) fetchCSV(ctx context.Context, endpoint, sourceSymbol string) ([]map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, feed.Errf(feedName, sourceSymbol, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, feed.Errf(feedName, sourceSymbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, feed.Errf(feedName, sourceSymbol, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, feed.Errf(feedName, sourceSymbol, fmt.Errorf("parse csv: %w", err))
	}
	if len(records) < 2 {
		return nil, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// field parses a numeric CSV column; Stooq uses "N/D" for missing values.
func field(row map[string]string, name string) (float64, bool) {
	raw := strings.TrimSpace(row[name])
	if raw == "" || raw == "N/D" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
