// Package pipeline runs one raw ticker batch through normalization, scoring and ranking.
package pipeline

import (
	"volatility-radar/internal/domain"
	"volatility-radar/internal/normalization"
	"volatility-radar/internal/ranking"
	"volatility-radar/internal/scoring"
)

// DefaultQuoteSuffix is the quote asset a symbol must end with to be eligible.
const DefaultQuoteSuffix = "USDT"

// Config carries every tunable of the batch engine. It is passed by value into
// each Run call.
type Config struct {
	QuoteSuffix         string
	VolatilityThreshold float64
	VolatilityTopN      int
	MarketCapTopN       int
	Magnitudes          []scoring.Magnitude
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		QuoteSuffix:         DefaultQuoteSuffix,
		VolatilityThreshold: scoring.DefaultThreshold,
		VolatilityTopN:      scoring.DefaultTopN,
		MarketCapTopN:       ranking.DefaultTopN,
		Magnitudes:          scoring.DefaultMagnitudes(),
	}
}

// ScoringConfig projects the volatility table settings.
func (c Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		Threshold:  c.VolatilityThreshold,
		TopN:       c.VolatilityTopN,
		Magnitudes: c.Magnitudes,
	}
}

// Result is the output of one batch.
type Result struct {
	BatchSize  int
	Eligible   int
	Rejections []normalization.Rejection
	Volatility []domain.ScoredRecord
	MarketCap  []domain.CapRecord
}

// Run computes both tables for batch from scratch.
// Steps:
//  1. Normalize the raw batch (eligible suffix, numeric coercion, rejections)
//  2. Score the canonical records into the volatility table
//  3. Rank the same canonical records by market cap using lookup
//
// Run holds no state between calls and does not modify batch.
// A nil lookup yields an empty market-cap table.
func Run(cfg Config, batch []domain.RawTickerEvent, lookup ranking.SupplyLookup) Result {
	records, rejections := normalization.Normalize(batch, cfg.QuoteSuffix)

	return Result{
		BatchSize:  len(batch),
		Eligible:   len(records),
		Rejections: rejections,
		Volatility: scoring.Score(records, cfg.ScoringConfig()),
		MarketCap:  ranking.RankByMarketCap(records, lookup, cfg.MarketCapTopN),
	}
}
