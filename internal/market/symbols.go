package market

import (
	"regexp"
	"strings"
)

// symbolPattern constrains canonical tickers: uppercase letters, digits,
// dot, dash and caret, at most 10 characters.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-^]{1,10}$`)

// Normalize upper-cases and trims a raw ticker.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidSymbol reports whether s is a well-formed canonical symbol.
// Callers are expected to Normalize first.
func ValidSymbol(s string) bool {
	return symbolPattern.MatchString(s)
}

// sourceAliases maps canonical symbols to the chart-API symbol space
// (Yahoo-style identifiers).
var sourceAliases = map[string]string{
	"AAPL":   "AAPL",
	"VNM":    "VNM.VN",
	"SPX":    "^GSPC",
	"DOW":    "^DJI",
	"BTC":    "BTC-USD",
	"ETH":    "ETH-USD",
	"GOLD":   "GC=F",
	"EURUSD": "EURUSD=X",
	"USDVND": "USDVND=X",
	"VN30":   "VNM.US",
}

// stooqAliases maps chart-API symbols to Stooq's symbol space.
var stooqAliases = map[string]string{
	"AAPL":     "AAPL.US",
	"VNM.US":   "VNM.US",
	"^GSPC":    "^SPX",
	"^DJI":     "^DJI",
	"BTC-USD":  "BTCUSD",
	"ETH-USD":  "ETH.V",
	"GC=F":     "XAUUSD",
	"EURUSD=X": "EURUSD",
	"USDVND=X": "USDVND",
}

// binanceAliases maps canonical and chart symbols to Binance pairs.
var binanceAliases = map[string]string{
	"BTC":    "BTCUSDT",
	"BTCUSD": "BTCUSDT",
	"ETH":    "ETHUSDT",
	"ETHUSD": "ETHUSDT",
}

// cryptoRoots are symbols treated as crypto without any suffix hint.
var cryptoRoots = map[string]struct{}{
	"BTC": {}, "ETH": {}, "BNB": {}, "SOL": {}, "XRP": {}, "ADA": {},
	"DOGE": {}, "LTC": {}, "TRX": {}, "AVAX": {}, "DOT": {}, "LINK": {},
}

var stablecoinQuotes = []string{"USDT", "BUSD", "USDC", "FDUSD"}

// SourceSymbol resolves a canonical symbol into the chart-API symbol space.
// Unknown symbols pass through unchanged.
func SourceSymbol(canonical string) string {
	s := Normalize(canonical)
	if v, ok := sourceAliases[s]; ok {
		return v
	}
	return s
}

// StooqSymbol resolves a chart-API symbol into Stooq's symbol space.
func StooqSymbol(sourceSymbol string) string {
	s := strings.ToUpper(sourceSymbol)
	if v, ok := stooqAliases[s]; ok {
		return v
	}
	return s
}

// BinanceSymbol resolves a canonical or chart symbol into a Binance trading
// pair. Returns "" when no plausible pair exists.
func BinanceSymbol(canonical, sourceSymbol string) string {
	for _, candidate := range []string{canonical, sourceSymbol} {
		raw := stripPairSeparators(candidate)
		if raw == "" {
			continue
		}
		if v, ok := binanceAliases[raw]; ok {
			return v
		}
		if strings.HasSuffix(raw, "USD") && len(raw) >= 6 {
			return raw[:len(raw)-3] + "USDT"
		}
		for _, q := range stablecoinQuotes {
			if strings.HasSuffix(raw, q) && len(raw) >= 6 {
				return raw
			}
		}
	}
	raw := stripPairSeparators(canonical)
	if raw != "" && isAlnum(raw) && len(raw) <= 10 {
		return raw + "USDT"
	}
	return ""
}

// DetectAssetClass derives the asset class from the canonical and source
// symbol shapes: known crypto roots or stablecoin-quote suffixes mean
// crypto; an "=X" suffix or known FX pair means fx; everything else is
// treated as equity.
func DetectAssetClass(canonical, sourceSymbol string) AssetClass {
	cu := Normalize(canonical)
	su := strings.ToUpper(sourceSymbol)
	if likelyCrypto(cu) || likelyCrypto(su) {
		return AssetCrypto
	}
	if strings.HasSuffix(su, "=X") || cu == "EURUSD" || cu == "USDVND" {
		return AssetFX
	}
	return AssetEquity
}

func likelyCrypto(value string) bool {
	raw := stripPairSeparators(value)
	if _, ok := binanceAliases[raw]; ok {
		return true
	}
	if len(raw) >= 6 {
		for _, q := range stablecoinQuotes {
			if strings.HasSuffix(raw, q) {
				return true
			}
		}
	}
	_, ok := cryptoRoots[raw]
	return ok
}

func stripPairSeparators(s string) string {
	r := strings.NewReplacer("/", "", "-", "")
	return r.Replace(strings.ToUpper(strings.TrimSpace(s)))
}

func isAlnum(s string) bool {
	for _, c := range s {
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return len(s) > 0
}

// IndexSpec describes one entry of the fixed ticker-strip index set.
type IndexSpec struct {
	Symbol string
	Name   string
}

// IndexSpecs is the well-known set of index/reference symbols served by the
// market overview.
var IndexSpecs = []IndexSpec{
	{Symbol: "VN30", Name: "VN30 Proxy"},
	{Symbol: "SPX", Name: "S&P 500"},
	{Symbol: "DOW", Name: "Dow Jones"},
	{Symbol: "BTC", Name: "Bitcoin"},
	{Symbol: "ETH", Name: "Ethereum"},
	{Symbol: "GOLD", Name: "Gold Futures"},
	{Symbol: "EURUSD", Name: "EUR/USD"},
	{Symbol: "USDVND", Name: "USD/VND"},
}
