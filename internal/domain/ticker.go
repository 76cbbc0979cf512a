package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NumericText is a numeric field carried as text.
// The feed sends most numbers as JSON strings and a few (trade count, timestamps)
// as JSON numbers; both decode to their literal text. JSON null decodes to "".
// Any other literal (true, {}, [...]) is kept verbatim so coercion rejects the
// one ticker carrying it instead of the whole message.
type NumericText string

// UnmarshalJSON accepts any JSON value and never fails on a well-formed one.
func (t *NumericText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("numeric text: %w", err)
		}
		*t = NumericText(s)
		return nil
	}

	*t = NumericText(data)
	return nil
}

// RawTickerEvent is one entry of a 24h rolling-window ticker stream message.
//
// encoding/json falls back to case-insensitive key matching, and the feed uses
// pairs of keys that differ only in case (p/P, b/B, a/A, ...). Every key the feed
// sends is therefore declared so each one lands in its own field.
type RawTickerEvent struct {
	EventType          string      `json:"e"`
	EventTime          NumericText `json:"E"` // ms since epoch
	Symbol             string      `json:"s"`
	PriceChange        NumericText `json:"p"`
	PriceChangePercent NumericText `json:"P"`
	WeightedAvgPrice   NumericText `json:"w"`
	PrevClosePrice     NumericText `json:"x"`
	CurrentPrice       NumericText `json:"c"`
	LastQty            NumericText `json:"Q"`
	BestBid            NumericText `json:"b"`
	BestBidQty         NumericText `json:"B"`
	BestAsk            NumericText `json:"a"`
	BestAskQty         NumericText `json:"A"`
	OpenPrice          NumericText `json:"o"`
	HighPrice          NumericText `json:"h"`
	LowPrice           NumericText `json:"l"`
	BaseVolume         NumericText `json:"v"`
	QuoteVolume        NumericText `json:"q"`
	OpenTime           NumericText `json:"O"`
	CloseTime          NumericText `json:"C"`
	FirstTradeID       NumericText `json:"F"`
	LastTradeID        NumericText `json:"L"`
	TradeCount         NumericText `json:"n"`
}
