package supply

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"volatility-radar/internal/observability"
	"volatility-radar/internal/storage"
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	// QuoteSuffix is trimmed from a symbol to find its base asset.
	QuoteSuffix string
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Cache is an in-memory snapshot of a SupplyStore.
// Lookup never touches the store, so the batch engine stays synchronous.
type Cache struct {
	store  storage.SupplyStore
	suffix string
	logger *zap.Logger

	mu       sync.RWMutex
	byAsset  map[string]float64
	loadedAt time.Time
}

// NewCache creates an empty cache over store. Call Refresh or Run to fill it.
func NewCache(store storage.SupplyStore, opts CacheOptions) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:   store,
		suffix:  opts.QuoteSuffix,
		logger:  logger.Named("supply"),
		byAsset: make(map[string]float64),
	}
}

// Lookup returns the circulating supply for a trading symbol such as "BTCUSDT".
// Base assets are matched case-insensitively.
// Its signature matches ranking.SupplyLookup.
func (c *Cache) Lookup(symbol string) (float64, bool) {
	asset := strings.ToUpper(strings.TrimSuffix(symbol, c.suffix))
	if asset == "" {
		return 0, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.byAsset[asset]
	return v, ok
}

// Len returns the number of cached assets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byAsset)
}

// LoadedAt returns the time of the last successful refresh, zero if none.
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Refresh replaces the cache contents with the store's current records.
// On error the previous contents are kept.
func (c *Cache) Refresh(ctx context.Context) error {
	records, err := c.store.GetAll(ctx)
	if err != nil {
		observability.RecordSupplyRefresh(0, err)
		return fmt.Errorf("refresh supply cache: %w", err)
	}

	next := make(map[string]float64, len(records))
	for _, r := range records {
		next[strings.ToUpper(r.Asset)] = r.Supply
	}

	c.mu.Lock()
	c.byAsset = next
	c.loadedAt = time.Now().UTC()
	c.mu.Unlock()

	observability.RecordSupplyRefresh(len(next), nil)
	c.logger.Debug("supply cache refreshed", zap.Int("assets", len(next)))
	return nil
}

// Run refreshes every interval until ctx is done. Failed refreshes are logged
// and retried on the next tick. Returns ctx.Err().
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("supply refresh failed", zap.Error(err))
			}
		}
	}
}
