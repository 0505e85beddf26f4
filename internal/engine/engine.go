package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketnexus/internal/cache"
	"marketnexus/internal/market"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Cache TTLs. Quotes and the index overview stay useful for tens of seconds;
// short intraday candles go stale in a few.
const (
	quoteTTL        = 25 * time.Second
	candleShortTTL  = 8 * time.Second
	candleTTL       = 25 * time.Second
	indicesTTL      = 30 * time.Second
	historyTTL      = 5 * time.Minute
	indicesCacheKey = "indices:overview"

	// batchFanout bounds concurrent upstream fetches during a multi-symbol
	// request.
	batchFanout = 6
)

// DataSource is the upstream surface the engine consults on cache misses.
// *provider.Provider satisfies it.
type DataSource interface {
	GetQuote(ctx context.Context, symbol string) (market.Quote, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int) (market.CandleSet, error)
	GetHistory(ctx context.Context, symbol string, days int) ([]market.HistoryPoint, error)
	GetMarketIndices(ctx context.Context) ([]market.MarketIndex, error)
}

// Engine fronts the data source with the layered cache and per-key dedup
// locks. All read paths follow the same shape: cache lookup, per-key lock,
// double-checked cache re-read, upstream fetch, cache write.
type Engine struct {
	cache  *cache.Layer
	source DataSource
	logger *zap.Logger
	locks  *lockTable
}

func New(c *cache.Layer, source DataSource, logger *zap.Logger) *Engine {
	return &Engine{
		cache:  c,
		source: source,
		logger: logger,
		locks:  newLockTable(),
	}
}

// ErrInvalidSymbol rejects malformed symbols before any upstream work.
var ErrInvalidSymbol = errors.New("engine: invalid symbol")

func quoteKey(symbol string) string { return "quote:" + symbol }

// GetQuote returns the cached or freshly fetched quote for symbol.
// Unavailable quotes (zero price) pass through but are never cached, so the
// next caller retries upstream.
func (e *Engine) GetQuote(ctx context.Context, symbol string) (market.Quote, error) {
	symbol = market.Normalize(symbol)
	if !market.ValidSymbol(symbol) {
		return market.Quote{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	key := quoteKey(symbol)

	var q market.Quote
	if err := e.cache.GetObject(ctx, key, &q); err == nil {
		return q, nil
	}

	release := e.locks.acquire(key)
	defer release()

	// Another goroutine may have filled the cache while we waited.
	if err := e.cache.GetObject(ctx, key, &q); err == nil {
		return q, nil
	}

	q, err := e.source.GetQuote(ctx, symbol)
	if err != nil {
		return market.Quote{}, err
	}
	if q.Price > 0 {
		e.cache.Set(ctx, key, q, quoteTTL)
	}
	return q, nil
}

// GetQuotes resolves a batch of symbols, preserving request order. Invalid
// symbols are dropped, cached symbols are served from one batch read, and the
// rest are fetched concurrently with bounded fan-out. Per-symbol failures are
// logged and omitted from the result rather than failing the batch.
func (e *Engine) GetQuotes(ctx context.Context, symbols []string) ([]market.Quote, error) {
	valid := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = market.Normalize(s)
		if !market.ValidSymbol(s) {
			e.logger.Debug("dropping invalid symbol from batch", zap.String("symbol", s))
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return []market.Quote{}, nil
	}

	keys := make([]string, len(valid))
	for i, s := range valid {
		keys[i] = quoteKey(s)
	}
	cached := e.cache.GetMany(ctx, keys)

	results := make([]*market.Quote, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchFanout)
	for i, s := range valid {
		i, s := i, s
		if raw, ok := cached[keys[i]]; ok {
			var q market.Quote
			if err := json.Unmarshal(raw, &q); err == nil {
				results[i] = &q
				continue
			}
		}
		g.Go(func() error {
			q, err := e.GetQuote(gctx, s)
			if err != nil {
				e.logger.Warn("batch quote failed", zap.String("symbol", s), zap.Error(err))
				return nil
			}
			results[i] = &q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	quotes := make([]market.Quote, 0, len(valid))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes, nil
}

// GetCandles returns cached or fresh OHLCV bars. Minute-scale intervals get a
// shorter TTL than the rest.
func (e *Engine) GetCandles(ctx context.Context, symbol, interval string, limit int) (market.CandleSet, error) {
	symbol = market.Normalize(symbol)
	if !market.ValidSymbol(symbol) {
		return market.CandleSet{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	key := fmt.Sprintf("candles:%s:%s:%d", symbol, interval, limit)

	var set market.CandleSet
	if err := e.cache.GetObject(ctx, key, &set); err == nil {
		return set, nil
	}

	release := e.locks.acquire(key)
	defer release()

	if err := e.cache.GetObject(ctx, key, &set); err == nil {
		return set, nil
	}

	set, err := e.source.GetCandles(ctx, symbol, interval, limit)
	if err != nil {
		return market.CandleSet{}, err
	}
	e.cache.Set(ctx, key, set, candleTTLFor(interval))
	return set, nil
}

func candleTTLFor(interval string) time.Duration {
	switch interval {
	case "1m", "5m":
		return candleShortTTL
	default:
		return candleTTL
	}
}

// GetHistory returns cached or fresh daily closes. Daily data moves slowly,
// so the TTL is minutes rather than seconds.
func (e *Engine) GetHistory(ctx context.Context, symbol string, days int) ([]market.HistoryPoint, error) {
	symbol = market.Normalize(symbol)
	if !market.ValidSymbol(symbol) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	key := fmt.Sprintf("history:%s:%d", symbol, days)

	var points []market.HistoryPoint
	if err := e.cache.GetObject(ctx, key, &points); err == nil {
		return points, nil
	}

	release := e.locks.acquire(key)
	defer release()

	if err := e.cache.GetObject(ctx, key, &points); err == nil {
		return points, nil
	}

	points, err := e.source.GetHistory(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	e.cache.Set(ctx, key, points, historyTTL)
	return points, nil
}

// GetMarketIndices returns the cached or freshly assembled ticker-strip
// overview. A cold boot with every feed down yields an empty overview, not an
// error; empty overviews are never cached so recovery is immediate.
func (e *Engine) GetMarketIndices(ctx context.Context) (market.MarketOverview, error) {
	var overview market.MarketOverview
	if err := e.cache.GetObject(ctx, indicesCacheKey, &overview); err == nil {
		return overview, nil
	}

	release := e.locks.acquire(indicesCacheKey)
	defer release()

	if err := e.cache.GetObject(ctx, indicesCacheKey, &overview); err == nil {
		return overview, nil
	}

	indices, err := e.source.GetMarketIndices(ctx)
	if err != nil {
		e.logger.Warn("index overview fetch failed", zap.Error(err))
		return market.MarketOverview{Indices: []market.MarketIndex{}}, nil
	}
	if indices == nil {
		indices = []market.MarketIndex{}
	}
	overview = market.MarketOverview{Indices: indices}
	if len(indices) > 0 {
		e.cache.Set(ctx, indicesCacheKey, overview, indicesTTL)
	}
	return overview, nil
}

// CacheStats exposes the cache state for health reporting.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// InflightFetches reports how many keys are currently being fetched upstream.
func (e *Engine) InflightFetches() int {
	return e.locks.size()
}
