package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"volatility-radar/internal/domain"
)

// ErrDecode is wrapped by every DecodeBatch failure.
var ErrDecode = errors.New("decode ticker batch")

// envelope is the combined-stream wrapper: {"stream":"!ticker@arr","data":[...]}.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// DecodeBatch parses one feed message into raw tickers.
// Accepted shapes:
//   - a JSON array of ticker objects (raw stream)
//   - a combined-stream envelope whose data is an array or a single ticker
//   - a single ticker object
func DecodeBatch(data []byte) ([]domain.RawTickerEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrDecode)
	}

	switch data[0] {
	case '[':
		return decodeArray(data)
	case '{':
	default:
		return nil, fmt.Errorf("%w: unexpected leading byte %q", ErrDecode, data[0])
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if env.Stream != "" || len(env.Data) > 0 {
		inner := bytes.TrimSpace(env.Data)
		if len(inner) == 0 {
			return nil, fmt.Errorf("%w: envelope %q without data", ErrDecode, env.Stream)
		}
		if inner[0] == '[' {
			return decodeArray(inner)
		}
		return decodeObject(inner)
	}

	return decodeObject(data)
}

func decodeArray(data []byte) ([]domain.RawTickerEvent, error) {
	var batch []domain.RawTickerEvent
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if batch == nil {
		batch = []domain.RawTickerEvent{}
	}
	return batch, nil
}

func decodeObject(data []byte) ([]domain.RawTickerEvent, error) {
	var ev domain.RawTickerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if ev.Symbol == "" {
		return nil, fmt.Errorf("%w: object is not a ticker", ErrDecode)
	}
	return []domain.RawTickerEvent{ev}, nil
}
