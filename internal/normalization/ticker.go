package normalization

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"volatility-radar/internal/domain"
)

// Field parse errors. A FieldError wraps exactly one of these.
var (
	ErrMissingField    = errors.New("missing numeric field")
	ErrMalformedNumber = errors.New("malformed number")
	ErrNegative        = errors.New("negative value")
	ErrNotInteger      = errors.New("not an integer")
	ErrOutOfRange      = errors.New("value out of range")
)

// FieldError reports which feed field made a ticker unusable.
type FieldError struct {
	Field string // feed code, e.g. "v"
	Value string // raw text, empty when missing
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Rejection is an eligible ticker that was dropped from the batch.
type Rejection struct {
	Index  int    // position in the raw batch
	Symbol string // raw symbol
	Err    error  // *FieldError
}

// Field returns the feed code of the offending field, or "" if unknown.
func (r Rejection) Field() string {
	var fe *FieldError
	if errors.As(r.Err, &fe) {
		return fe.Field
	}
	return ""
}

func (r Rejection) Error() string {
	return fmt.Sprintf("ticker #%d %s rejected: %v", r.Index, r.Symbol, r.Err)
}

// IsEligible reports whether symbol is quoted in quoteSuffix and has a base asset.
func IsEligible(symbol, quoteSuffix string) bool {
	return len(symbol) > len(quoteSuffix) && strings.HasSuffix(symbol, quoteSuffix)
}

// Normalize converts a raw batch into canonical records.
// Steps:
//  1. Drop tickers whose symbol is not quoted in quoteSuffix
//  2. Coerce every numeric field; any failure rejects that ticker only
//  3. Derive direction and bid-ask spread
//
// Arrival order is preserved. No deduplication happens here.
// The raw batch is not modified.
func Normalize(raw []domain.RawTickerEvent, quoteSuffix string) ([]domain.CanonicalSymbolRecord, []Rejection) {
	records := make([]domain.CanonicalSymbolRecord, 0, len(raw))
	var rejected []Rejection

	for i := range raw {
		ev := &raw[i]
		if !IsEligible(ev.Symbol, quoteSuffix) {
			continue
		}

		rec, err := ParseRecord(ev)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Symbol: ev.Symbol, Err: err})
			continue
		}
		records = append(records, rec)
	}

	return records, rejected
}

// ParseRecord coerces a single raw ticker. It does not check eligibility.
// Returns a *FieldError for the first unusable field.
func ParseRecord(ev *domain.RawTickerEvent) (domain.CanonicalSymbolRecord, error) {
	var (
		rec domain.CanonicalSymbolRecord
		err error
	)
	rec.Symbol = ev.Symbol

	if rec.PriceChangePercent, err = parseFloat("P", ev.PriceChangePercent); err != nil {
		return rec, err
	}
	if rec.CurrentPrice, err = parseFloat("c", ev.CurrentPrice); err != nil {
		return rec, err
	}
	if rec.OpenPrice, err = parseFloat("o", ev.OpenPrice); err != nil {
		return rec, err
	}
	if rec.BestBid, err = parseFloat("b", ev.BestBid); err != nil {
		return rec, err
	}
	if rec.BestAsk, err = parseFloat("a", ev.BestAsk); err != nil {
		return rec, err
	}
	if rec.BaseVolume, err = parseNonNegative("v", ev.BaseVolume); err != nil {
		return rec, err
	}
	if rec.QuoteVolume, err = parseNonNegative("q", ev.QuoteVolume); err != nil {
		return rec, err
	}
	if rec.TradeCount, err = parseCount("n", ev.TradeCount); err != nil {
		return rec, err
	}
	// Event time is informational; absent is fine, garbage is not.
	if strings.TrimSpace(string(ev.EventTime)) != "" {
		if rec.EventTime, err = parseCount("E", ev.EventTime); err != nil {
			return rec, err
		}
	}

	rec.Direction = domain.DirectionDown
	if rec.CurrentPrice > rec.OpenPrice {
		rec.Direction = domain.DirectionUp
	}
	rec.BidAskSpread = rec.BestAsk - rec.BestBid

	return rec, nil
}

func parseDecimal(field string, text domain.NumericText) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(text))
	if s == "" {
		return decimal.Zero, &FieldError{Field: field, Err: ErrMissingField}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &FieldError{Field: field, Value: s, Err: ErrMalformedNumber}
	}
	return d, nil
}

var maxCount = decimal.NewFromInt(math.MaxInt64)

func parseFloat(field string, text domain.NumericText) (float64, error) {
	d, err := parseDecimal(field, text)
	if err != nil {
		return 0, err
	}
	return toFinite(field, text, d)
}

// toFinite rejects decimals that overflow float64.
func toFinite(field string, text domain.NumericText, d decimal.Decimal) (float64, error) {
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, &FieldError{Field: field, Value: string(text), Err: ErrOutOfRange}
	}
	return f, nil
}

func parseNonNegative(field string, text domain.NumericText) (float64, error) {
	d, err := parseDecimal(field, text)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, &FieldError{Field: field, Value: string(text), Err: ErrNegative}
	}
	return toFinite(field, text, d)
}

func parseCount(field string, text domain.NumericText) (int64, error) {
	d, err := parseDecimal(field, text)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, &FieldError{Field: field, Value: string(text), Err: ErrNegative}
	}
	if !d.IsInteger() {
		return 0, &FieldError{Field: field, Value: string(text), Err: ErrNotInteger}
	}
	if d.GreaterThan(maxCount) {
		return 0, &FieldError{Field: field, Value: string(text), Err: ErrOutOfRange}
	}
	return d.IntPart(), nil
}
