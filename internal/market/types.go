package market

import (
	"strings"
	"time"
)

// AssetClass categorizes an instrument and selects which feed fallback chain
// and interval vocabulary apply to it.
type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetFX     AssetClass = "fx"
	AssetCrypto AssetClass = "crypto"
)

// Quote is a normalized snapshot for a single instrument.
// A zero Price marks the quote as unavailable; unavailable quotes must never
// be cached alongside real results.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Timestamp     int64   `json:"timestamp"` // unix seconds when the quote was produced
}

// SyntheticSuffix tags quotes produced by the synthetic feed so callers can
// recognize and suppress mock data where real data is assumed.
const SyntheticSuffix = " (Mock)"

// IsSynthetic reports whether the quote came from the synthetic feed.
func (q Quote) IsSynthetic() bool {
	return strings.Contains(q.Name, SyntheticSuffix)
}

// Candle is a single OHLCV bar.
type Candle struct {
	Time   int64   `json:"time"` // unix seconds, bar open
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// CandleSet is an ascending, de-duplicated series of candles for one symbol.
// Source records provenance (feed name or "mock") so callers can discount
// synthetic data.
type CandleSet struct {
	Symbol   string   `json:"symbol"`
	Interval string   `json:"interval"`
	Source   string   `json:"source"`
	Candles  []Candle `json:"candles"`
}

// HistoryPoint is one day of closing data.
type HistoryPoint struct {
	Date   string  `json:"date"` // ISO date (YYYY-MM-DD)
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// MarketIndex is one entry of the ticker-strip overview.
type MarketIndex struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// MarketOverview is the aggregate indices payload served to clients.
type MarketOverview struct {
	Indices []MarketIndex `json:"indices"`
}

// LedgerInput is the input to the safe-to-spend calculation.
type LedgerInput struct {
	Income         float64 `json:"income"`
	PlannedBudget  float64 `json:"planned_budget"`
	ActualExpenses float64 `json:"actual_expenses"`
}

// BudgetStatus classifies budget utilization.
type BudgetStatus string

const (
	BudgetHealthy    BudgetStatus = "healthy"
	BudgetWarning    BudgetStatus = "warning"
	BudgetCritical   BudgetStatus = "critical"
	BudgetOverBudget BudgetStatus = "over_budget"
)

// LedgerResult is the output of the safe-to-spend calculation.
type LedgerResult struct {
	SafeToSpend       float64      `json:"safe_to_spend"`
	BudgetUtilization float64      `json:"budget_utilization"`
	RemainingBudget   float64      `json:"remaining_budget"`
	SavingsPotential  float64      `json:"savings_potential"`
	Status            BudgetStatus `json:"status"`
	StatusMessage     string       `json:"status_message"`
	CalculatedAt      time.Time    `json:"calculated_at"`
}
