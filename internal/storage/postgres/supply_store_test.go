package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/storage"
)

func TestSupplyStore_UpsertAndGetByAsset(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSupplyStore(pool)

	sup := &domain.CirculatingSupply{
		Asset:     "BTC",
		Supply:    19_600_000,
		Source:    "seed",
		UpdatedAt: 1704067200000,
	}
	require.NoError(t, store.Upsert(ctx, sup))

	got, err := store.GetByAsset(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, sup.Asset, got.Asset)
	assert.InDelta(t, sup.Supply, got.Supply, 0.0001)
	assert.Equal(t, sup.Source, got.Source)
	assert.Equal(t, sup.UpdatedAt, got.UpdatedAt)
}

func TestSupplyStore_UpsertOverwrites(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSupplyStore(pool)

	require.NoError(t, store.Upsert(ctx, &domain.CirculatingSupply{Asset: "ETH", Supply: 120_000_000, Source: "seed", UpdatedAt: 1}))
	require.NoError(t, store.Upsert(ctx, &domain.CirculatingSupply{Asset: "ETH", Supply: 121_000_000, Source: "provider", UpdatedAt: 2}))

	got, err := store.GetByAsset(ctx, "ETH")
	require.NoError(t, err)
	assert.InDelta(t, 121_000_000.0, got.Supply, 0.0001)
	assert.Equal(t, "provider", got.Source)
	assert.Equal(t, int64(2), got.UpdatedAt)
}

func TestSupplyStore_GetByAssetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewSupplyStore(pool).GetByAsset(context.Background(), "NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSupplyStore_UpsertBulkAndGetAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSupplyStore(pool)

	err := store.UpsertBulk(ctx, []*domain.CirculatingSupply{
		{Asset: "SOL", Supply: 440_000_000, Source: "seed", UpdatedAt: 1},
		{Asset: "BTC", Supply: 19_600_000, Source: "seed", UpdatedAt: 1},
		{Asset: "ETH", Supply: 120_000_000, Source: "seed", UpdatedAt: 1},
	})
	require.NoError(t, err)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "BTC", all[0].Asset)
	assert.Equal(t, "ETH", all[1].Asset)
	assert.Equal(t, "SOL", all[2].Asset)
}

func TestSupplyStore_UpsertBulkRejectsInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSupplyStore(pool)

	err := store.UpsertBulk(ctx, []*domain.CirculatingSupply{
		{Asset: "BTC", Supply: 1, UpdatedAt: 1},
		{Asset: "BAD", Supply: -1, UpdatedAt: 1},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
