// Package ranking orders aggregated symbols by market capitalization.
package ranking

import (
	"math"
	"sort"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/scoring"
)

// DefaultTopN is the default size of the market-cap table.
const DefaultTopN = 100

// SupplyLookup resolves the circulating supply of a symbol.
// ok is false when the supply is unknown.
type SupplyLookup func(symbol string) (supply float64, ok bool)

// RankByMarketCap builds the market-cap table for one batch of canonical records.
// Steps:
//  1. Aggregate repeated symbols (same accumulation as the volatility table)
//  2. Score every aggregated symbol with the batch factors, no threshold
//  3. Drop symbols whose supply is unknown, NaN or non-positive
//  4. Stable sort by market cap DESC, truncate to topN
//
// Always returns a non-nil slice. A nil lookup yields an empty table.
func RankByMarketCap(records []domain.CanonicalSymbolRecord, lookup SupplyLookup, topN int) []domain.CapRecord {
	groups := scoring.Aggregate(records)
	if len(groups) == 0 || lookup == nil || topN <= 0 {
		return []domain.CapRecord{}
	}

	factors := scoring.ComputeFactors(groups)

	out := make([]domain.CapRecord, 0, len(groups))
	for _, g := range groups {
		supply, ok := lookup(g.Symbol)
		if !ok || math.IsNaN(supply) || math.IsInf(supply, 0) || supply <= 0 {
			continue
		}

		out = append(out, domain.CapRecord{
			CanonicalSymbolRecord: g,
			VolumePriceRatio:      volumePriceRatio(g),
			CirculatingSupply:     supply,
			MarketCap:             g.CurrentPrice * supply,
			VolatilityScore:       scoring.ScoreOf(g, factors),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MarketCap > out[j].MarketCap
	})

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func volumePriceRatio(r domain.CanonicalSymbolRecord) float64 {
	if r.CurrentPrice == 0 {
		return 0
	}
	return r.BaseVolume / r.CurrentPrice
}
