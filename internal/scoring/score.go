package scoring

import (
	"math"
	"sort"

	"volatility-radar/internal/domain"
)

// Defaults for the volatility table.
const (
	DefaultThreshold = 1.0
	DefaultTopN      = 10
)

// Config controls one Score call.
type Config struct {
	// Threshold is the exclusive lower bound on |price change %|.
	Threshold float64
	// TopN is the maximum table size. Non-positive yields an empty table.
	TopN int
	// Magnitudes drive volume formatting. Nil means DefaultMagnitudes.
	Magnitudes []Magnitude
}

// DefaultConfig returns the default volatility table configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:  DefaultThreshold,
		TopN:       DefaultTopN,
		Magnitudes: DefaultMagnitudes(),
	}
}

// Score builds the volatility table for one batch of canonical records.
// Steps:
//  1. Aggregate repeated symbols
//  2. Compute normalization factors over all aggregated symbols
//  3. Keep symbols with |price change| > Threshold
//  4. Stable sort by score DESC (ties keep first-appearance order)
//  5. Truncate to TopN and format display fields
//
// Always returns a non-nil slice.
func Score(records []domain.CanonicalSymbolRecord, cfg Config) []domain.ScoredRecord {
	groups := Aggregate(records)
	if len(groups) == 0 || cfg.TopN <= 0 {
		return []domain.ScoredRecord{}
	}

	factors := ComputeFactors(groups)

	out := make([]domain.ScoredRecord, 0, len(groups))
	for _, g := range groups {
		if math.Abs(g.PriceChangePercent) <= cfg.Threshold {
			continue
		}
		out = append(out, domain.ScoredRecord{
			CanonicalSymbolRecord: g,
			VolatilityScore:       ScoreOf(g, factors),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VolatilityScore > out[j].VolatilityScore
	})

	if len(out) > cfg.TopN {
		out = out[:cfg.TopN]
	}

	mags := cfg.Magnitudes
	if mags == nil {
		mags = DefaultMagnitudes()
	}
	for i := range out {
		r := &out[i]
		r.FormattedBaseVolume = FormatVolumeWith(r.BaseVolume, mags)
		r.FormattedQuoteVolume = FormatVolumeWith(r.QuoteVolume, mags)
		r.FormattedCurrentPrice = FormatPrice(r.CurrentPrice)
		r.FormattedBestBid = FormatPrice(r.BestBid)
		r.FormattedBestAsk = FormatPrice(r.BestAsk)
	}

	return out
}
