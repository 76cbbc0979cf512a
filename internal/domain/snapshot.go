package domain

import "time"

// Snapshot is the complete output of one processed batch.
type Snapshot struct {
	ID         string         `json:"id"`
	Sequence   uint64         `json:"sequence"`
	ComputedAt time.Time      `json:"computed_at"`
	BatchSize  int            `json:"batch_size"`
	Eligible   int            `json:"eligible"`
	Rejected   int            `json:"rejected"`
	Volatility []ScoredRecord `json:"volatility"`
	MarketCap  []CapRecord    `json:"market_cap"`
}
