package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"marketnexus/internal/feed"
	"marketnexus/internal/market"

	"go.uber.org/zap"
)

const (
	feedName       = "yahoo"
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

	// The chart API rejects requests without a browser-looking agent.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

// intervalMap lists the intervals the chart API understands, keyed by our
// canonical interval vocabulary.
var intervalMap = map[string]string{
	"1m":  "1m",
	"2m":  "2m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "60m",
	"60m": "60m",
	"1d":  "1d",
	"1w":  "1wk",
}

// rangeByInterval picks a lookback range wide enough to fill a chart at the
// given interval.
var rangeByInterval = map[string]string{
	"1m":  "5d",
	"2m":  "1mo",
	"5m":  "1mo",
	"15m": "3mo",
	"30m": "3mo",
	"1h":  "6mo",
	"60m": "6mo",
	"1d":  "2y",
	"1w":  "5y",
}

// Client fetches quotes, candles and history from the Yahoo chart API.
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

// NormalizeInterval maps an arbitrary interval onto the chart API
// vocabulary, defaulting to 5m. It never errors on odd input.
func NormalizeInterval(interval string) string {
	v := canonicalInterval(interval)
	if _, ok := intervalMap[v]; ok {
		return v
	}
	return "5m"
}

func canonicalInterval(interval string) string {
	switch interval {
	case "60m":
		return "1h"
	case "4h":
		// The chart API has no 4h bucket; 1h is the nearest.
		return "1h"
	default:
		return interval
	}
}

func (c *Client) Quote(ctx context.Context, sourceSymbol string) (market.Quote, error) {
	result, err := c.fetchChart(ctx, sourceSymbol, url.Values{
		"range":    {"5d"},
		"interval": {"1d"},
	})
	if err != nil {
		return market.Quote{}, err
	}

	meta := result.Meta
	var closes, highs, lows []float64
	var volumes []float64
	if len(result.Indicators.Quote) > 0 {
		q := result.Indicators.Quote[0]
		closes = compact(q.Close)
		highs = compact(q.High)
		lows = compact(q.Low)
		volumes = compact(q.Volume)
	}

	price := 0.0
	if meta.RegularMarketPrice != nil {
		price = *meta.RegularMarketPrice
	} else if len(closes) > 0 {
		price = closes[len(closes)-1]
	}
	if price <= 0 {
		return market.Quote{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}

	prev := 0.0
	if meta.ChartPreviousClose != nil {
		prev = *meta.ChartPreviousClose
	}
	if prev == 0 && len(closes) >= 2 {
		prev = closes[len(closes)-2]
	}

	change, changePct := 0.0, 0.0
	if prev != 0 {
		change = price - prev
		changePct = change / prev * 100
	}

	high := maxOr(highs, price)
	if meta.RegularMarketDayHigh != nil {
		high = *meta.RegularMarketDayHigh
	}
	low := minOr(lows, price)
	if meta.RegularMarketDayLow != nil {
		low = *meta.RegularMarketDayLow
	}

	var volume int64
	if meta.RegularMarketVolume != nil {
		volume = int64(*meta.RegularMarketVolume)
	} else if len(volumes) > 0 {
		volume = int64(volumes[len(volumes)-1])
	}

	name := meta.ShortName
	if name == "" {
		name = meta.LongName
	}
	if name == "" {
		name = meta.Symbol
	}
	if name == "" {
		name = sourceSymbol
	}

	symbol := meta.Symbol
	if symbol == "" {
		symbol = sourceSymbol
	}

	return market.Quote{
		Symbol:        market.Normalize(symbol),
		Name:          name,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		Volume:        volume,
		DayHigh:       high,
		DayLow:        low,
		Timestamp:     time.Now().Unix(),
	}, nil
}

func (c *Client) Candles(ctx context.Context, sourceSymbol, interval string, limit int) (market.CandleSet, error) {
	normalized := NormalizeInterval(interval)
	requestInterval := intervalMap[normalized]
	requestRange, ok := rangeByInterval[normalized]
	if !ok {
		requestRange = "3mo"
	}

	result, err := c.fetchChart(ctx, sourceSymbol, url.Values{
		"range":          {requestRange},
		"interval":       {requestInterval},
		"includePrePost": {"false"},
		"events":         {"div,splits"},
	})
	if err != nil {
		return market.CandleSet{}, err
	}
	if len(result.Indicators.Quote) == 0 {
		return market.CandleSet{}, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}

	q := result.Indicators.Quote[0]
	candles := make([]market.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o := at(q.Open, i)
		h := at(q.High, i)
		lo := at(q.Low, i)
		cl := at(q.Close, i)
		if o == nil || h == nil || lo == nil || cl == nil {
			continue
		}
		volume := 0.0
		if v := at(q.Volume, i); v != nil {
			volume = *v
		}
		candles = append(candles, market.Candle{
			Time:   ts,
			Open:   *o,
			High:   *h,
			Low:    *lo,
			Close:  *cl,
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
		Interval: interval,
		Source:   feedName,
		Candles:  candles,
	}, nil
}

func (c *Client) History(ctx context.Context, sourceSymbol string, days int) ([]market.HistoryPoint, error) {
	end := time.Now().UTC()
	lookback := days * 3
	if lookback < 21 {
		lookback = 21
	}
	start := end.AddDate(0, 0, -lookback)

	result, err := c.fetchChart(ctx, sourceSymbol, url.Values{
		"period1":  {fmt.Sprintf("%d", start.Unix())},
		"period2":  {fmt.Sprintf("%d", end.Unix())},
		"interval": {"1d"},
		"events":   {"history"},
	})
	if err != nil {
		return nil, err
	}
	if len(result.Indicators.Quote) == 0 {
		return nil, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}

	q := result.Indicators.Quote[0]
	points := make([]market.HistoryPoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		cl := at(q.Close, i)
		if cl == nil {
			continue
		}
		volume := int64(0)
		if v := at(q.Volume, i); v != nil {
			volume = int64(*v)
		}
		points = append(points, market.HistoryPoint{
			Date:   time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Close:  *cl,
			Volume: volume,
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

// chartResult is the subset of the chart API response we consume. Price
// arrays use pointers because the API emits null for halted bars.
type chartResult struct {
	Meta struct {
		Symbol               string   `json:"symbol"`
		ShortName            string   `json:"shortName"`
		LongName             string   `json:"longName"`
		RegularMarketPrice   *float64 `json:"regularMarketPrice"`
		ChartPreviousClose   *float64 `json:"chartPreviousClose"`
		RegularMarketDayHigh *float64 `json:"regularMarketDayHigh"`
		RegularMarketDayLow  *float64 `json:"regularMarketDayLow"`
		RegularMarketVolume  *float64 `json:"regularMarketVolume"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) fetchChart(ctx context.Context, sourceSymbol string, params url.Values) (*chartResult, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(sourceSymbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, feed.Errf(feedName, sourceSymbol, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, feed.Errf(feedName, sourceSymbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, feed.Errf(feedName, sourceSymbol, fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, feed.Errf(feedName, sourceSymbol, fmt.Errorf("decode response: %w", err))
	}
	if payload.Chart.Error != nil {
		return nil, feed.Errf(feedName, sourceSymbol,
			fmt.Errorf("chart error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description))
	}
	if len(payload.Chart.Result) == 0 {
		return nil, feed.Errf(feedName, sourceSymbol, feed.ErrNoData)
	}
	return &payload.Chart.Result[0], nil
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func compact(values []*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func maxOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
