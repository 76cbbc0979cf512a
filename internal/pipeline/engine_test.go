package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volatility-radar/internal/domain"
)

const feedBatch = `[
  {"e":"24hrTicker","E":1700000000000,"s":"AUSDT","p":"0.5","P":"5.0","c":"10","o":"9.5","b":"9.75","a":"10.25","v":"1000","q":"10000","n":10},
  {"e":"24hrTicker","E":1700000000001,"s":"ETHBTC","P":"9.0","c":"0.05","o":"0.04","b":"0.049","a":"0.051","v":"1","q":"0.05","n":1},
  {"e":"24hrTicker","E":1700000000002,"s":"BUSDT","p":"-0.4","P":"-2.0","c":"20","o":"20.4","b":"19.9","a":"20.1","v":"500","q":"10000","n":5},
  {"e":"24hrTicker","E":1700000000003,"s":"BADUSDT","P":"n/a","c":"1","o":"1","b":"1","a":"1","v":"1","q":"1","n":1}
]`

func decode(t *testing.T, raw string) []domain.RawTickerEvent {
	t.Helper()
	var batch []domain.RawTickerEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &batch))
	return batch
}

func supplyOf(m map[string]float64) func(string) (float64, bool) {
	return func(symbol string) (float64, bool) {
		v, ok := m[symbol]
		return v, ok
	}
}

func TestRun_EndToEnd(t *testing.T) {
	batch := decode(t, feedBatch)

	res := Run(DefaultConfig(), batch, supplyOf(map[string]float64{"AUSDT": 1_000_000}))

	assert.Equal(t, 4, res.BatchSize)
	assert.Equal(t, 2, res.Eligible)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, "BADUSDT", res.Rejections[0].Symbol)
	assert.Equal(t, "P", res.Rejections[0].Field())

	require.Len(t, res.Volatility, 2)
	assert.Equal(t, "AUSDT", res.Volatility[0].Symbol)
	assert.Equal(t, "BUSDT", res.Volatility[1].Symbol)
	assert.InDelta(t, 1.0, res.Volatility[0].VolatilityScore, 1e-12)
	assert.Less(t, res.Volatility[1].VolatilityScore, res.Volatility[0].VolatilityScore)
	assert.Equal(t, domain.DirectionUp, res.Volatility[0].Direction)
	assert.Equal(t, domain.DirectionDown, res.Volatility[1].Direction)

	require.Len(t, res.MarketCap, 1, "BUSDT has no supply")
	assert.Equal(t, "AUSDT", res.MarketCap[0].Symbol)
	assert.Equal(t, 10_000_000.0, res.MarketCap[0].MarketCap)
	assert.Equal(t, 100.0, res.MarketCap[0].VolumePriceRatio)
	assert.Equal(t, res.Volatility[0].VolatilityScore, res.MarketCap[0].VolatilityScore)
}

func TestRun_Deterministic(t *testing.T) {
	batch := decode(t, feedBatch)
	lookup := supplyOf(map[string]float64{"AUSDT": 10, "BUSDT": 10})

	first := Run(DefaultConfig(), batch, lookup)
	second := Run(DefaultConfig(), batch, lookup)

	assert.Equal(t, first.Volatility, second.Volatility)
	assert.Equal(t, first.MarketCap, second.MarketCap)
}

func TestRun_EmptyBatch(t *testing.T) {
	res := Run(DefaultConfig(), nil, nil)

	assert.Equal(t, 0, res.BatchSize)
	assert.Equal(t, 0, res.Eligible)
	assert.Empty(t, res.Rejections)
	assert.NotNil(t, res.Volatility)
	assert.Empty(t, res.Volatility)
	assert.NotNil(t, res.MarketCap)
	assert.Empty(t, res.MarketCap)
}

func TestRun_CustomConfig(t *testing.T) {
	batch := decode(t, feedBatch)

	cfg := DefaultConfig()
	cfg.QuoteSuffix = "BTC"
	res := Run(cfg, batch, nil)

	assert.Equal(t, 1, res.Eligible)
	require.Len(t, res.Volatility, 1)
	assert.Equal(t, "ETHBTC", res.Volatility[0].Symbol)

	cfg = DefaultConfig()
	cfg.VolatilityThreshold = 3
	cfg.VolatilityTopN = 5
	res = Run(cfg, batch, nil)
	require.Len(t, res.Volatility, 1)
	assert.Equal(t, "AUSDT", res.Volatility[0].Symbol)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "USDT", cfg.QuoteSuffix)
	assert.Equal(t, 1.0, cfg.VolatilityThreshold)
	assert.Equal(t, 10, cfg.VolatilityTopN)
	assert.Equal(t, 100, cfg.MarketCapTopN)
	require.Len(t, cfg.Magnitudes, 4)
	assert.Equal(t, "T", cfg.Magnitudes[3].Suffix)
}
