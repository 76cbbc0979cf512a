package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"volatility-radar/internal/domain"
)

// Factors are the per-metric maxima of an aggregated batch.
type Factors struct {
	MaxAbsPriceChange float64
	MaxVolume         float64
	MaxTradeCount     float64
	MaxBidAskSpread   float64
}

// NormalizationFactor is the shared divisor of every score in the batch.
func (f Factors) NormalizationFactor() float64 {
	return f.MaxAbsPriceChange + f.MaxVolume + f.MaxTradeCount + f.MaxBidAskSpread
}

// ComputeFactors returns the maxima over records. Zero value for an empty slice.
func ComputeFactors(records []domain.CanonicalSymbolRecord) Factors {
	n := len(records)
	if n == 0 {
		return Factors{}
	}

	absChange := make([]float64, n)
	volume := make([]float64, n)
	trades := make([]float64, n)
	spread := make([]float64, n)
	for i, r := range records {
		absChange[i] = math.Abs(r.PriceChangePercent)
		volume[i] = r.BaseVolume
		trades[i] = float64(r.TradeCount)
		spread[i] = r.BidAskSpread
	}

	return Factors{
		MaxAbsPriceChange: floats.Max(absChange),
		MaxVolume:         floats.Max(volume),
		MaxTradeCount:     floats.Max(trades),
		MaxBidAskSpread:   floats.Max(spread),
	}
}

// ScoreOf computes the composite volatility score of one record:
//
//	(|priceChange| + baseVolume + tradeCount + bidAskSpread) / normalizationFactor
//
// The metrics are summed in their native units, so the result is a ranking
// statistic and not bounded to [0, 1]. A zero normalization factor scores 0.
func ScoreOf(r domain.CanonicalSymbolRecord, f Factors) float64 {
	nf := f.NormalizationFactor()
	if nf == 0 {
		return 0
	}
	return (math.Abs(r.PriceChangePercent) + r.BaseVolume + float64(r.TradeCount) + r.BidAskSpread) / nf
}
