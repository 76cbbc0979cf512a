package supply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volatility-radar/internal/storage/memory"
)

const seedYAML = `
source: coingecko-2024-06
assets:
  eth: 120000000
  BTC: 19700000
  SOL: 440000000
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supply.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParse(t *testing.T) {
	records, err := Parse([]byte(seedYAML), 1704067200000)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "BTC", records[0].Asset)
	assert.Equal(t, "ETH", records[1].Asset, "assets are upper-cased")
	assert.Equal(t, "SOL", records[2].Asset)
	assert.Equal(t, 120_000_000.0, records[1].Supply)
	assert.Equal(t, "coingecko-2024-06", records[0].Source)
	assert.Equal(t, int64(1704067200000), records[0].UpdatedAt)
}

func TestParse_DefaultSource(t *testing.T) {
	records, err := Parse([]byte("assets:\n  BTC: 1\n"), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, DefaultSource, records[0].Source)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"not yaml":       "assets: [",
		"negative":       "assets:\n  BTC: -5\n",
		"case duplicate": "assets:\n  btc: 1\n  BTC: 2\n",
		"empty asset":    "assets:\n  \"\": 1\n",
	}
	for name, content := range cases {
		_, err := Parse([]byte(content), 0)
		assert.True(t, errors.Is(err, ErrInvalidFile), "%s: expected ErrInvalidFile, got %v", name, err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	store := memory.NewSupplyStore()
	ctx := context.Background()

	n, err := Seed(ctx, store, writeSeed(t, seedYAML))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	btc, err := store.GetByAsset(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 19_700_000.0, btc.Supply)
}
