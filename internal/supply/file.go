// Package supply provides circulating supply figures to the market-cap ranker.
package supply

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/storage"
)

// ErrInvalidFile is wrapped by LoadFile and Parse errors.
var ErrInvalidFile = errors.New("invalid supply file")

// DefaultSource is recorded when the file does not name a source.
const DefaultSource = "seed"

// File is the on-disk seed format:
//
//	source: coingecko-2024-06
//	assets:
//	  BTC: 19700000
//	  ETH: 120000000
type File struct {
	Source string             `yaml:"source"`
	Assets map[string]float64 `yaml:"assets"`
}

// LoadFile reads and parses a supply seed file.
func LoadFile(path string) ([]*domain.CirculatingSupply, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read supply file: %w", err)
	}
	return Parse(data, time.Now().UnixMilli())
}

// Parse decodes seed YAML into records stamped with updatedAt.
// Assets are upper-cased and returned sorted.
func Parse(data []byte, updatedAt int64) ([]*domain.CirculatingSupply, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	source := f.Source
	if source == "" {
		source = DefaultSource
	}

	out := make([]*domain.CirculatingSupply, 0, len(f.Assets))
	seen := make(map[string]bool, len(f.Assets))
	for asset, units := range f.Assets {
		key := strings.ToUpper(strings.TrimSpace(asset))
		if seen[key] {
			return nil, fmt.Errorf("%w: asset %s listed twice", ErrInvalidFile, key)
		}
		seen[key] = true

		rec := &domain.CirculatingSupply{
			Asset:     key,
			Supply:    units,
			Source:    source,
			UpdatedAt: updatedAt,
		}
		if err := storage.ValidateSupply(rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

// Seed loads path into store. Returns the number of records written.
func Seed(ctx context.Context, store storage.SupplyStore, path string) (int, error) {
	records, err := LoadFile(path)
	if err != nil {
		return 0, err
	}
	if err := store.UpsertBulk(ctx, records); err != nil {
		return 0, fmt.Errorf("seed supply: %w", err)
	}
	return len(records), nil
}
