package synthetic

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"marketnexus/internal/market"
)

const feedName = "mock"

// Client deterministically fabricates plausible market data from the symbol
// text and the current time. It never fails and terminates every fallback
// chain. All outputs are tagged so callers can recognize synthetic data:
// quote names carry market.SyntheticSuffix and candle sets use source
// "mock".
type Client struct {
	now func() time.Time
}

func New() *Client {
	return &Client{now: time.Now}
}

// NewWithClock fixes the time source, for tests.
func NewWithClock(now func() time.Time) *Client {
	return &Client{now: now}
}

func (c *Client) Name() string { return feedName }

func (c *Client) Quote(ctx context.Context, sourceSymbol string) (market.Quote, error) {
	price := c.price(sourceSymbol)
	previous := math.Max(price*0.99, 0.01)
	change := price - previous

	return market.Quote{
		Symbol:        market.Normalize(sourceSymbol),
		Name:          market.Normalize(sourceSymbol) + market.SyntheticSuffix,
		Price:         price,
		Change:        change,
		ChangePercent: change / previous * 100,
		Volume:        100_000 + int64(seed(sourceSymbol)%900_000),
		DayHigh:       price * 1.01,
		DayLow:        price * 0.99,
		Timestamp:     c.now().Unix(),
	}, nil
}

func (c *Client) Candles(ctx context.Context, sourceSymbol, interval string, limit int) (market.CandleSet, error) {
	step := intervalStep(interval)
	now := c.now().Unix()
	base := math.Max(c.price(sourceSymbol), 1.0)
	rng := rand.New(rand.NewSource(int64(seed(sourceSymbol))))

	candles := make([]market.Candle, 0, limit)
	price := base
	for i := 0; i < limit; i++ {
		ts := now - int64(limit-i)*int64(step/time.Second)
		drift := (rng.Float64() - 0.5) * base * 0.01
		open := math.Max(price, 0.01)
		closePrice := math.Max(open+drift, 0.01)
		high := math.Max(open, closePrice) * (1 + rng.Float64()*0.003)
		low := math.Min(open, closePrice) * (1 - rng.Float64()*0.003)
		candles = append(candles, market.Candle{
			Time:   ts,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: math.Abs(drift)*10_000 + rng.Float64()*5_000,
		})
		price = closePrice
	}

	return market.CandleSet{
		Symbol:   market.Normalize(sourceSymbol),
		Interval: interval,
		Source:   feedName,
		Candles:  candles,
	}, nil
}

func (c *Client) History(ctx context.Context, sourceSymbol string, days int) ([]market.HistoryPoint, error) {
	base := 100.0 + float64(len(sourceSymbol))*10.5
	rng := rand.New(rand.NewSource(int64(seed(sourceSymbol))))
	today := c.now().UTC()

	points := make([]market.HistoryPoint, 0, days)
	for i := 0; i < days; i++ {
		change := (rng.Float64() - 0.5) * base * 0.05
		points = append(points, market.HistoryPoint{
			Date:   today.AddDate(0, 0, i-days+1).Format("2006-01-02"),
			Close:  math.Max(base+change, 1.0),
			Volume: int64(1000*(i+1)) + int64(rng.Float64()*500),
		})
	}
	return points, nil
}

// price derives a stable-ish value from the symbol text that drifts slowly
// over time: repeated calls within the same second agree exactly.
func (c *Client) price(symbol string) float64 {
	base := 100.0 + float64(len(symbol))*10.5
	t := c.now().Unix()
	jitter := float64(perSecondSeed(symbol, t)%100) / 50.0
	fluctuation := math.Sin(float64(t)/10)*2.0 + jitter
	return base + fluctuation
}

func seed(symbol string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return h.Sum64()
}

func perSecondSeed(symbol string, sec int64) uint64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sec >> (8 * i))
	}
	h.Write(buf[:])
	return h.Sum64()
}

func intervalStep(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}
