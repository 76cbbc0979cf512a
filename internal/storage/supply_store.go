package storage

import (
	"context"

	"volatility-radar/internal/domain"
)

// SupplyStore provides access to circulating_supply reference data.
// Records are keyed by base asset and overwritten on upsert.
type SupplyStore interface {
	// Upsert inserts or replaces the supply of one asset.
	// Returns ErrInvalidInput for an empty asset or a negative/NaN supply.
	Upsert(ctx context.Context, s *domain.CirculatingSupply) error

	// UpsertBulk upserts all records atomically. Fails the whole batch on any invalid record.
	UpsertBulk(ctx context.Context, supplies []*domain.CirculatingSupply) error

	// GetByAsset retrieves the supply of one asset. Returns ErrNotFound if not exists.
	GetByAsset(ctx context.Context, asset string) (*domain.CirculatingSupply, error)

	// GetAll retrieves every record ordered by asset ASC.
	GetAll(ctx context.Context) ([]*domain.CirculatingSupply, error)
}
