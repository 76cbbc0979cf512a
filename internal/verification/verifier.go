// Package verification checks snapshots against the ranking rules and compares
// a stored snapshot with a replayed one.
package verification

import (
	"fmt"
	"math"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/pipeline"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// Violation is one broken ranking rule.
type Violation struct {
	Table  string // "volatility", "market_cap" or "snapshot"
	Row    int    // 0-based row, -1 for table-level rules
	Symbol string
	Rule   string
}

func (v Violation) String() string {
	if v.Row < 0 {
		return fmt.Sprintf("%s: %s", v.Table, v.Rule)
	}
	return fmt.Sprintf("%s[%d] %s: %s", v.Table, v.Row, v.Symbol, v.Rule)
}

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field path, e.g. volatility[2].VolatilityScore
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// CheckSnapshot verifies the ordering, size and inclusion rules of both tables.
// Returns nil when the snapshot is consistent with cfg.
func CheckSnapshot(snap *domain.Snapshot, cfg pipeline.Config) []Violation {
	var out []Violation
	add := func(table string, row int, symbol, rule string, args ...interface{}) {
		out = append(out, Violation{Table: table, Row: row, Symbol: symbol, Rule: fmt.Sprintf(rule, args...)})
	}

	if snap.Eligible+snap.Rejected > snap.BatchSize {
		add("snapshot", -1, "", "eligible %d + rejected %d exceeds batch size %d", snap.Eligible, snap.Rejected, snap.BatchSize)
	}

	// Volatility table
	if len(snap.Volatility) > max(cfg.VolatilityTopN, 0) {
		add("volatility", -1, "", "%d rows exceeds top-n %d", len(snap.Volatility), cfg.VolatilityTopN)
	}
	seen := make(map[string]bool, len(snap.Volatility))
	for i, r := range snap.Volatility {
		if seen[r.Symbol] {
			add("volatility", i, r.Symbol, "duplicate symbol")
		}
		seen[r.Symbol] = true

		if math.Abs(r.PriceChangePercent) <= cfg.VolatilityThreshold {
			add("volatility", i, r.Symbol, "|price change| %v not above threshold %v", r.PriceChangePercent, cfg.VolatilityThreshold)
		}
		// Every term is bounded by its batch maximum, so a score never exceeds 1.
		if r.VolatilityScore > 1+FloatTolerance {
			add("volatility", i, r.Symbol, "score %v above 1", r.VolatilityScore)
		}
		if i > 0 && r.VolatilityScore > snap.Volatility[i-1].VolatilityScore {
			add("volatility", i, r.Symbol, "score %v above previous row %v", r.VolatilityScore, snap.Volatility[i-1].VolatilityScore)
		}
	}

	// Market cap table
	if len(snap.MarketCap) > max(cfg.MarketCapTopN, 0) {
		add("market_cap", -1, "", "%d rows exceeds top-n %d", len(snap.MarketCap), cfg.MarketCapTopN)
	}
	seen = make(map[string]bool, len(snap.MarketCap))
	for i, r := range snap.MarketCap {
		if seen[r.Symbol] {
			add("market_cap", i, r.Symbol, "duplicate symbol")
		}
		seen[r.Symbol] = true

		if !(r.CirculatingSupply > 0) || math.IsInf(r.CirculatingSupply, 0) {
			add("market_cap", i, r.Symbol, "supply %v is not positive and finite", r.CirculatingSupply)
		}
		if !almostEqual(r.MarketCap, r.CurrentPrice*r.CirculatingSupply) {
			add("market_cap", i, r.Symbol, "market cap %v != price %v x supply %v", r.MarketCap, r.CurrentPrice, r.CirculatingSupply)
		}
		if i > 0 && r.MarketCap > snap.MarketCap[i-1].MarketCap {
			add("market_cap", i, r.Symbol, "market cap %v above previous row %v", r.MarketCap, snap.MarketCap[i-1].MarketCap)
		}
	}

	return out
}

// CompareSnapshots compares the ranking content of two snapshots.
// Identity fields (ID, Sequence, ComputedAt) are ignored.
// Uses FloatTolerance for float64 comparisons.
func CompareSnapshots(stored, replayed *domain.Snapshot) []FieldDivergence {
	var divergences []FieldDivergence
	diff := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.BatchSize != replayed.BatchSize {
		diff("BatchSize", stored.BatchSize, replayed.BatchSize)
	}
	if stored.Eligible != replayed.Eligible {
		diff("Eligible", stored.Eligible, replayed.Eligible)
	}
	if stored.Rejected != replayed.Rejected {
		diff("Rejected", stored.Rejected, replayed.Rejected)
	}

	if len(stored.Volatility) != len(replayed.Volatility) {
		diff("len(volatility)", len(stored.Volatility), len(replayed.Volatility))
	}
	for i := 0; i < min(len(stored.Volatility), len(replayed.Volatility)); i++ {
		s, r := stored.Volatility[i], replayed.Volatility[i]
		prefix := fmt.Sprintf("volatility[%d].", i)
		divergences = append(divergences, compareCanonical(prefix, s.CanonicalSymbolRecord, r.CanonicalSymbolRecord)...)
		if !almostEqual(s.VolatilityScore, r.VolatilityScore) {
			diff(prefix+"VolatilityScore", s.VolatilityScore, r.VolatilityScore)
		}
		if s.FormattedBaseVolume != r.FormattedBaseVolume {
			diff(prefix+"FormattedBaseVolume", s.FormattedBaseVolume, r.FormattedBaseVolume)
		}
		if s.FormattedQuoteVolume != r.FormattedQuoteVolume {
			diff(prefix+"FormattedQuoteVolume", s.FormattedQuoteVolume, r.FormattedQuoteVolume)
		}
	}

	if len(stored.MarketCap) != len(replayed.MarketCap) {
		diff("len(market_cap)", len(stored.MarketCap), len(replayed.MarketCap))
	}
	for i := 0; i < min(len(stored.MarketCap), len(replayed.MarketCap)); i++ {
		s, r := stored.MarketCap[i], replayed.MarketCap[i]
		prefix := fmt.Sprintf("market_cap[%d].", i)
		divergences = append(divergences, compareCanonical(prefix, s.CanonicalSymbolRecord, r.CanonicalSymbolRecord)...)
		if !almostEqual(s.CirculatingSupply, r.CirculatingSupply) {
			diff(prefix+"CirculatingSupply", s.CirculatingSupply, r.CirculatingSupply)
		}
		if !almostEqual(s.MarketCap, r.MarketCap) {
			diff(prefix+"MarketCap", s.MarketCap, r.MarketCap)
		}
		if !almostEqual(s.VolumePriceRatio, r.VolumePriceRatio) {
			diff(prefix+"VolumePriceRatio", s.VolumePriceRatio, r.VolumePriceRatio)
		}
		if !almostEqual(s.VolatilityScore, r.VolatilityScore) {
			diff(prefix+"VolatilityScore", s.VolatilityScore, r.VolatilityScore)
		}
	}

	return divergences
}

func compareCanonical(prefix string, s, r domain.CanonicalSymbolRecord) []FieldDivergence {
	var out []FieldDivergence
	if s.Symbol != r.Symbol {
		// Remaining fields are meaningless once the symbols differ.
		return []FieldDivergence{{Field: prefix + "Symbol", Expected: s.Symbol, Actual: r.Symbol}}
	}

	floats := []struct {
		name     string
		expected float64
		actual   float64
	}{
		{"PriceChangePercent", s.PriceChangePercent, r.PriceChangePercent},
		{"CurrentPrice", s.CurrentPrice, r.CurrentPrice},
		{"BaseVolume", s.BaseVolume, r.BaseVolume},
		{"QuoteVolume", s.QuoteVolume, r.QuoteVolume},
		{"BidAskSpread", s.BidAskSpread, r.BidAskSpread},
	}
	for _, f := range floats {
		if !almostEqual(f.expected, f.actual) {
			out = append(out, FieldDivergence{Field: prefix + f.name, Expected: f.expected, Actual: f.actual})
		}
	}
	if s.TradeCount != r.TradeCount {
		out = append(out, FieldDivergence{Field: prefix + "TradeCount", Expected: s.TradeCount, Actual: r.TradeCount})
	}
	return out
}

// almostEqual compares with an absolute tolerance for small values and a
// relative one for large values such as market caps.
func almostEqual(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		return diff <= FloatTolerance
	}
	return diff <= FloatTolerance*scale
}
