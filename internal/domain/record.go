package domain

// Direction is the sign of the move from open to current price.
type Direction string

// Direction constants
const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// CanonicalSymbolRecord is a validated, fully numeric ticker for an eligible symbol.
type CanonicalSymbolRecord struct {
	Symbol             string    `json:"symbol"`
	PriceChangePercent float64   `json:"price_change_percent"` // signed
	CurrentPrice       float64   `json:"current_price"`
	OpenPrice          float64   `json:"open_price"`
	BestBid            float64   `json:"best_bid"`
	BestAsk            float64   `json:"best_ask"`
	BaseVolume         float64   `json:"base_volume"`  // >= 0
	QuoteVolume        float64   `json:"quote_volume"` // >= 0
	TradeCount         int64     `json:"trade_count"`  // >= 0
	Direction          Direction `json:"direction"`
	BidAskSpread       float64   `json:"bid_ask_spread"` // best ask - best bid
	EventTime          int64     `json:"event_time"`     // ms, 0 when the feed omitted it
}

// ScoredRecord is a row of the volatility table.
type ScoredRecord struct {
	CanonicalSymbolRecord
	VolatilityScore       float64 `json:"volatility_score"`
	FormattedBaseVolume   string  `json:"formatted_base_volume"`
	FormattedQuoteVolume  string  `json:"formatted_quote_volume"`
	FormattedCurrentPrice string  `json:"formatted_current_price"`
	FormattedBestBid      string  `json:"formatted_best_bid"`
	FormattedBestAsk      string  `json:"formatted_best_ask"`
}

// CapRecord is a row of the market capitalization table.
type CapRecord struct {
	CanonicalSymbolRecord
	VolumePriceRatio  float64 `json:"volume_price_ratio"`
	CirculatingSupply float64 `json:"circulating_supply"`
	MarketCap         float64 `json:"market_cap"`
	VolatilityScore   float64 `json:"volatility_score"`
}
