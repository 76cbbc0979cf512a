package scoring

import "volatility-radar/internal/domain"

// Aggregate collapses repeated updates for the same symbol into one record.
// Multiple updates within a batch are treated as cumulative trading activity:
//   - LAST: price change, current/open price, bid, ask, direction, event time
//   - SUM: base volume, quote volume, trade count, bid-ask spread
//
// The summed spread is then divided by len(records), the total record count
// of the batch, not by the group size.
//
// Groups keep first-appearance order so later stable sorts break ties by arrival.
// The input slice is not modified.
func Aggregate(records []domain.CanonicalSymbolRecord) []domain.CanonicalSymbolRecord {
	if len(records) == 0 {
		return nil
	}

	index := make(map[string]int, len(records))
	groups := make([]domain.CanonicalSymbolRecord, 0, len(records))

	for _, r := range records {
		i, ok := index[r.Symbol]
		if !ok {
			index[r.Symbol] = len(groups)
			groups = append(groups, r)
			continue
		}

		g := &groups[i]
		g.PriceChangePercent = r.PriceChangePercent
		g.CurrentPrice = r.CurrentPrice
		g.OpenPrice = r.OpenPrice
		g.BestBid = r.BestBid
		g.BestAsk = r.BestAsk
		g.Direction = r.Direction
		g.EventTime = r.EventTime

		g.BaseVolume += r.BaseVolume
		g.QuoteVolume += r.QuoteVolume
		g.TradeCount += r.TradeCount
		g.BidAskSpread += r.BidAskSpread
	}

	total := float64(len(records))
	for i := range groups {
		groups[i].BidAskSpread /= total
	}

	return groups
}
