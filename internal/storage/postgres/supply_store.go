package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/storage"
)

// SupplyStore implements storage.SupplyStore using PostgreSQL.
type SupplyStore struct {
	pool *Pool
}

// NewSupplyStore creates a new SupplyStore.
func NewSupplyStore(pool *Pool) *SupplyStore {
	return &SupplyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SupplyStore = (*SupplyStore)(nil)

const upsertSupplyQuery = `
	INSERT INTO circulating_supply (asset, supply, source, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (asset) DO UPDATE SET
		supply = EXCLUDED.supply,
		source = EXCLUDED.source,
		updated_at = EXCLUDED.updated_at
`

// Upsert inserts or replaces the supply of one asset.
func (s *SupplyStore) Upsert(ctx context.Context, sup *domain.CirculatingSupply) error {
	if err := storage.ValidateSupply(sup); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, upsertSupplyQuery, sup.Asset, sup.Supply, sup.Source, sup.UpdatedAt)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("upsert circulating supply: %w", err)
	}
	return nil
}

// UpsertBulk upserts all records in one transaction.
func (s *SupplyStore) UpsertBulk(ctx context.Context, supplies []*domain.CirculatingSupply) error {
	if len(supplies) == 0 {
		return nil
	}
	for _, sup := range supplies {
		if err := storage.ValidateSupply(sup); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, sup := range supplies {
		batch.Queue(upsertSupplyQuery, sup.Asset, sup.Supply, sup.Source, sup.UpdatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		return fmt.Errorf("upsert circulating supply in bulk: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByAsset retrieves the supply of one asset. Returns ErrNotFound if not exists.
func (s *SupplyStore) GetByAsset(ctx context.Context, asset string) (*domain.CirculatingSupply, error) {
	query := `
		SELECT asset, supply, source, updated_at
		FROM circulating_supply
		WHERE asset = $1
	`

	sup, err := scanSupply(s.pool.QueryRow(ctx, query, asset))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get circulating supply: %w", err)
	}
	return sup, nil
}

// GetAll retrieves every record ordered by asset ASC.
func (s *SupplyStore) GetAll(ctx context.Context) ([]*domain.CirculatingSupply, error) {
	query := `
		SELECT asset, supply, source, updated_at
		FROM circulating_supply
		ORDER BY asset ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query circulating supply: %w", err)
	}
	defer rows.Close()

	var result []*domain.CirculatingSupply
	for rows.Next() {
		sup, err := scanSupply(rows)
		if err != nil {
			return nil, fmt.Errorf("scan circulating supply: %w", err)
		}
		result = append(result, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate circulating supply: %w", err)
	}
	return result, nil
}

// scanSupply scans a single row into CirculatingSupply.
func scanSupply(row pgx.Row) (*domain.CirculatingSupply, error) {
	var sup domain.CirculatingSupply
	if err := row.Scan(&sup.Asset, &sup.Supply, &sup.Source, &sup.UpdatedAt); err != nil {
		return nil, err
	}
	return &sup, nil
}
