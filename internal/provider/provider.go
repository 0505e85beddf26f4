package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketnexus/internal/feed"
	"marketnexus/internal/market"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Candle request limits are clamped to this range before any feed sees
	// them.
	minCandleLimit = 20
	maxCandleLimit = 500

	indexFanout = 4
)

// Feeds names the clients composed into the fallback chains.
type Feeds struct {
	Yahoo     feed.Client
	Stooq     feed.Client
	Binance   feed.Client
	ERAPI     feed.Client
	Synthetic feed.Client
}

// Provider walks asset-class-aware fallback chains of feed clients and
// exposes a uniform quote/candles/history/indices surface. Individual feed
// failures are logged and swallowed; only exhaustion of the entire chain,
// synthetic client included, surfaces an error.
type Provider struct {
	feeds  Feeds
	logger *zap.Logger
}

func New(feeds Feeds, logger *zap.Logger) *Provider {
	return &Provider{feeds: feeds, logger: logger}
}

// chainLink pairs a client with the symbol translated into its own space.
type chainLink struct {
	client feed.Client
	symbol string
}

// resolution carries every per-feed translation of one canonical symbol.
type resolution struct {
	canonical string
	source    string // chart-API space
	stooq     string
	binance   string
	class     market.AssetClass
}

func resolve(canonical string) resolution {
	c := market.Normalize(canonical)
	source := market.SourceSymbol(c)
	return resolution{
		canonical: c,
		source:    source,
		stooq:     market.StooqSymbol(source),
		binance:   market.BinanceSymbol(c, source),
		class:     market.DetectAssetClass(c, source),
	}
}

// quoteChain orders the real feeds for one symbol. Each class prefers the
// client most likely to hold authoritative data; the ordering is static.
// A market-suffix hint (.VN) routes to the locale-aware chart client before
// the generic one.
func (p *Provider) quoteChain(r resolution) []chainLink {
	switch r.class {
	case market.AssetCrypto:
		return []chainLink{
			{p.feeds.Binance, r.binance},
			{p.feeds.Yahoo, r.source},
		}
	case market.AssetFX:
		return []chainLink{
			{p.feeds.Yahoo, r.source},
			{p.feeds.ERAPI, r.source},
			{p.feeds.Stooq, r.stooq},
		}
	default:
		if strings.HasSuffix(r.source, ".VN") {
			return []chainLink{
				{p.feeds.Yahoo, r.source},
				{p.feeds.Stooq, r.stooq},
			}
		}
		return []chainLink{
			{p.feeds.Stooq, r.stooq},
			{p.feeds.Yahoo, r.source},
		}
	}
}

// GetQuote returns the first successful quote along the chain for the
// detected asset class, falling back to synthetic data. Quotes for
// unavailable locale-listed symbols come back with a zero price instead of
// synthetic data so they are never mistaken for real results.
func (p *Provider) GetQuote(ctx context.Context, canonical string) (market.Quote, error) {
	r := resolve(canonical)

	for _, link := range p.quoteChain(r) {
		q, err := link.client.Quote(ctx, link.symbol)
		if err != nil {
			p.logger.Warn("quote fetch failed, advancing chain",
				zap.String("feed", link.client.Name()),
				zap.String("symbol", r.canonical),
				zap.String("source_symbol", link.symbol),
				zap.Error(err))
			continue
		}
		q.Symbol = r.canonical
		return q, nil
	}

	if strings.HasSuffix(r.source, ".VN") {
		return market.Quote{
			Symbol:    r.canonical,
			Name:      r.canonical + " (Unavailable)",
			Timestamp: time.Now().Unix(),
		}, nil
	}

	q, err := p.feeds.Synthetic.Quote(ctx, r.canonical)
	if err != nil {
		return market.Quote{}, fmt.Errorf("every feed failed for %s, synthetic included: %w", r.canonical, err)
	}
	q.Symbol = r.canonical
	return q, nil
}

// GetCandles fetches OHLCV bars, clamping limit to a safe range first.
// Stooq only serves daily bars, so it joins the chain for 1d requests only.
func (p *Provider) GetCandles(ctx context.Context, canonical, interval string, limit int) (market.CandleSet, error) {
	r := resolve(canonical)
	limit = clampLimit(limit)

	var chain []chainLink
	if r.class == market.AssetCrypto {
		chain = append(chain, chainLink{p.feeds.Binance, r.binance})
	}
	chain = append(chain, chainLink{p.feeds.Yahoo, r.source})
	if interval == "1d" {
		chain = append(chain, chainLink{p.feeds.Stooq, r.stooq})
	}

	for _, link := range chain {
		set, err := link.client.Candles(ctx, link.symbol, interval, limit)
		if err != nil {
			p.logger.Warn("candle fetch failed, advancing chain",
				zap.String("feed", link.client.Name()),
				zap.String("symbol", r.canonical),
				zap.Error(err))
			continue
		}
		set.Symbol = r.canonical
		set.Interval = interval
		return set, nil
	}

	set, err := p.feeds.Synthetic.Candles(ctx, r.canonical, interval, limit)
	if err != nil {
		return market.CandleSet{}, fmt.Errorf("every feed failed for %s candles, synthetic included: %w", r.canonical, err)
	}
	set.Symbol = r.canonical
	set.Interval = interval
	return set, nil
}

// GetHistory returns daily closes, degrading to synthetic generation rather
// than propagating an error: callers always receive some data.
func (p *Provider) GetHistory(ctx context.Context, canonical string, days int) ([]market.HistoryPoint, error) {
	r := resolve(canonical)

	chain := []chainLink{
		{p.feeds.Stooq, r.stooq},
		{p.feeds.Yahoo, r.source},
	}
	for _, link := range chain {
		points, err := link.client.History(ctx, link.symbol, days)
		if err != nil {
			p.logger.Warn("history fetch failed, advancing chain",
				zap.String("feed", link.client.Name()),
				zap.String("symbol", r.canonical),
				zap.Error(err))
			continue
		}
		return points, nil
	}

	points, err := p.feeds.Synthetic.History(ctx, r.canonical, days)
	if err != nil {
		return nil, fmt.Errorf("every feed failed for %s history, synthetic included: %w", r.canonical, err)
	}
	return points, nil
}

// GetMarketIndices fetches the fixed ticker-strip set concurrently.
// Entries whose quote is recognizably synthetic are dropped rather than
// displayed as real; failed entries are skipped.
func (p *Provider) GetMarketIndices(ctx context.Context) ([]market.MarketIndex, error) {
	quotes := make([]*market.Quote, len(market.IndexSpecs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(indexFanout)
	for i, spec := range market.IndexSpecs {
		i, spec := i, spec
		g.Go(func() error {
			q, err := p.GetQuote(gctx, spec.Symbol)
			if err != nil {
				p.logger.Warn("index fetch failed",
					zap.String("symbol", spec.Symbol), zap.Error(err))
				return nil
			}
			quotes[i] = &q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	indices := make([]market.MarketIndex, 0, len(market.IndexSpecs))
	for i, spec := range market.IndexSpecs {
		q := quotes[i]
		if q == nil || q.Price <= 0 {
			continue
		}
		if q.IsSynthetic() {
			p.logger.Warn("dropping synthetic index payload", zap.String("symbol", spec.Symbol))
			continue
		}
		indices = append(indices, market.MarketIndex{
			Symbol:        spec.Symbol,
			Name:          spec.Name,
			Value:         q.Price,
			Change:        q.Change,
			ChangePercent: q.ChangePercent,
		})
	}
	return indices, nil
}

func clampLimit(limit int) int {
	if limit < minCandleLimit {
		return minCandleLimit
	}
	if limit > maxCandleLimit {
		return maxCandleLimit
	}
	return limit
}
