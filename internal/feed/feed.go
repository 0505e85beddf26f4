package feed

import (
	"context"
	"errors"
	"fmt"

	"marketnexus/internal/market"
)

// Client is a stateless adapter for one upstream data source. Every client
// implements all three operations; a source that cannot serve an operation
// returns an error wrapping ErrUnsupported so the fallback chain advances.
//
// Symbols passed in are already translated into the client's own symbol
// space by the caller.
type Client interface {
	Name() string
	Quote(ctx context.Context, sourceSymbol string) (market.Quote, error)
	Candles(ctx context.Context, sourceSymbol, interval string, limit int) (market.CandleSet, error)
	History(ctx context.Context, sourceSymbol string, days int) ([]market.HistoryPoint, error)
}

// ErrNoData signals that the upstream answered but carried no usable price.
var ErrNoData = errors.New("no usable data")

// ErrUnsupported signals that the client cannot serve the operation at all.
var ErrUnsupported = errors.New("operation not supported by feed")

// FetchError is the typed failure raised at the client boundary. Clients
// must return it instead of partial or zero data so the provider can advance
// to the next source in the chain.
type FetchError struct {
	Feed   string
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %s: %v", e.Feed, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Errf wraps err as a FetchError for the given feed and symbol.
func Errf(feed, symbol string, err error) error {
	return &FetchError{Feed: feed, Symbol: symbol, Err: err}
}
