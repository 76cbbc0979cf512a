// Package reporting renders snapshots as Markdown and CSV tables.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"volatility-radar/internal/domain"
)

// RenderMarkdown renders both ranking tables of a snapshot as Markdown string.
func RenderMarkdown(snap *domain.Snapshot) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Snapshot %d\n\n", snap.Sequence))
	sb.WriteString(fmt.Sprintf("ID: %s | Computed: %s\n\n", snap.ID, snap.ComputedAt.UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Batch: %d | Eligible: %d | Rejected: %d\n\n", snap.BatchSize, snap.Eligible, snap.Rejected))

	// Volatility
	sb.WriteString("## Volatility\n\n")
	if len(snap.Volatility) > 0 {
		sb.WriteString("| # | Symbol | Change % | Price | Bid | Ask | Base Vol | Quote Vol | Trades | Score |\n")
		sb.WriteString("|---|--------|----------|-------|-----|-----|----------|-----------|--------|-------|\n")
		for i, r := range snap.Volatility {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s | %s | %d | %.4f |\n",
				i+1, r.Symbol, signedPercent(r.PriceChangePercent),
				r.FormattedCurrentPrice, r.FormattedBestBid, r.FormattedBestAsk,
				r.FormattedBaseVolume, r.FormattedQuoteVolume, r.TradeCount, r.VolatilityScore))
		}
	} else {
		sb.WriteString("No symbols above the volatility threshold.\n")
	}
	sb.WriteString("\n")

	// Market cap
	sb.WriteString("## Market Cap\n\n")
	if len(snap.MarketCap) > 0 {
		sb.WriteString("| # | Symbol | Price | Supply | Market Cap | Vol/Price | Score |\n")
		sb.WriteString("|---|--------|-------|--------|------------|-----------|-------|\n")
		for i, r := range snap.MarketCap {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.8f | %.0f | %.2f | %.4f | %.4f |\n",
				i+1, r.Symbol, r.CurrentPrice, r.CirculatingSupply,
				r.MarketCap, r.VolumePriceRatio, r.VolatilityScore))
		}
	} else {
		sb.WriteString("No symbols with known circulating supply.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func signedPercent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}
