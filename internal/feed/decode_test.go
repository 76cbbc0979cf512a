package feed

import (
	"errors"
	"testing"

	"volatility-radar/internal/normalization"
)

func TestDecodeBatch_Array(t *testing.T) {
	msg := []byte(`[{"e":"24hrTicker","s":"BTCUSDT","P":"1.5","n":42},{"s":"ETHUSDT","P":"-0.3"}]`)

	batch, err := DecodeBatch(msg)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 tickers, got %d", len(batch))
	}
	if batch[0].Symbol != "BTCUSDT" || batch[0].TradeCount != "42" {
		t.Errorf("unexpected first ticker: %+v", batch[0])
	}
	if batch[1].PriceChangePercent != "-0.3" {
		t.Errorf("expected P=-0.3, got %q", batch[1].PriceChangePercent)
	}
}

func TestDecodeBatch_EmptyArray(t *testing.T) {
	batch, err := DecodeBatch([]byte(" [] "))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if batch == nil || len(batch) != 0 {
		t.Errorf("expected empty non-nil batch, got %v", batch)
	}
}

func TestDecodeBatch_CombinedEnvelope(t *testing.T) {
	msg := []byte(`{"stream":"!ticker@arr","data":[{"s":"BTCUSDT","c":"43000.1"}]}`)

	batch, err := DecodeBatch(msg)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(batch) != 1 || batch[0].CurrentPrice != "43000.1" {
		t.Errorf("unexpected batch: %+v", batch)
	}
}

func TestDecodeBatch_SingleTicker(t *testing.T) {
	for _, msg := range []string{
		`{"stream":"btcusdt@ticker","data":{"s":"BTCUSDT","P":"2"}}`,
		`{"s":"BTCUSDT","P":"2"}`,
	} {
		batch, err := DecodeBatch([]byte(msg))
		if err != nil {
			t.Fatalf("DecodeBatch(%s): %v", msg, err)
		}
		if len(batch) != 1 || batch[0].Symbol != "BTCUSDT" {
			t.Errorf("DecodeBatch(%s): unexpected batch %+v", msg, batch)
		}
	}
}

func TestDecodeBatch_NonNumericLiteralKeepsBatch(t *testing.T) {
	msg := []byte(`[{"s":"BTCUSDT","P":"1.5","c":"100","o":"90","b":"99","a":"101","v":"10","q":"1000","n":5},` +
		`{"s":"ETHUSDT","P":"2","c":true,"o":"90","b":"99","a":"101","v":"10","q":"1000","n":5},` +
		`{"s":"SOLUSDT","P":"2","c":"20","o":"19","b":"19.9","a":"20.1","v":{},"q":"1000","n":[1]}]`)

	batch, err := DecodeBatch(msg)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 tickers, got %d", len(batch))
	}
	if batch[1].CurrentPrice != "true" || batch[2].BaseVolume != "{}" {
		t.Errorf("expected literals kept verbatim, got c=%q v=%q", batch[1].CurrentPrice, batch[2].BaseVolume)
	}

	records, rejected := normalization.Normalize(batch, "USDT")
	if len(records) != 1 || records[0].Symbol != "BTCUSDT" {
		t.Fatalf("expected only BTCUSDT to survive, got %+v", records)
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejections, got %v", rejected)
	}
	for _, r := range rejected {
		if !errors.Is(r.Err, normalization.ErrMalformedNumber) {
			t.Errorf("%s: expected ErrMalformedNumber, got %v", r.Symbol, r.Err)
		}
	}
	if rejected[0].Field() != "c" || rejected[1].Field() != "v" {
		t.Errorf("unexpected fields: %s, %s", rejected[0].Field(), rejected[1].Field())
	}
}

func TestDecodeBatch_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"scalar":       `42`,
		"broken json":  `[{"s":"BTCUSDT"`,
		"not a ticker": `{"result":null,"id":1}`,
		"no data":      `{"stream":"!ticker@arr"}`,
	}

	for name, msg := range cases {
		_, err := DecodeBatch([]byte(msg))
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		if !errors.Is(err, ErrDecode) {
			t.Errorf("%s: expected ErrDecode, got %v", name, err)
		}
	}
}
