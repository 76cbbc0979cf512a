package reporting

import (
	"fmt"
	"strings"

	"volatility-radar/internal/domain"
)

// RenderVolatilityCSV renders the volatility table as CSV string.
func RenderVolatilityCSV(rows []domain.ScoredRecord) string {
	var sb strings.Builder

	// Header
	sb.WriteString("rank,symbol,price_change_percent,direction,current_price,best_bid,best_ask,")
	sb.WriteString("base_volume,quote_volume,trade_count,bid_ask_spread,volatility_score\n")

	// Rows
	for i, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%.4f,%s,%s,%s,%s,%s,%s,%d,%.8f,%.6f\n",
			i+1,
			r.Symbol,
			r.PriceChangePercent,
			r.Direction,
			r.FormattedCurrentPrice,
			r.FormattedBestBid,
			r.FormattedBestAsk,
			r.FormattedBaseVolume,
			r.FormattedQuoteVolume,
			r.TradeCount,
			r.BidAskSpread,
			r.VolatilityScore,
		))
	}

	return sb.String()
}

// RenderMarketCapCSV renders the market-cap table as CSV string.
func RenderMarketCapCSV(rows []domain.CapRecord) string {
	var sb strings.Builder

	sb.WriteString("rank,symbol,current_price,circulating_supply,market_cap,volume_price_ratio,price_change_percent,volatility_score\n")

	for i, r := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%.8f,%.2f,%.2f,%.6f,%.4f,%.6f\n",
			i+1,
			r.Symbol,
			r.CurrentPrice,
			r.CirculatingSupply,
			r.MarketCap,
			r.VolumePriceRatio,
			r.PriceChangePercent,
			r.VolatilityScore,
		))
	}

	return sb.String()
}
