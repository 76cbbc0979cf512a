package memory

import (
	"context"
	"sort"
	"sync"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/storage"
)

// SupplyStore is an in-memory implementation of storage.SupplyStore.
type SupplyStore struct {
	mu      sync.RWMutex
	byAsset map[string]*domain.CirculatingSupply
}

// NewSupplyStore creates a new in-memory supply store.
func NewSupplyStore() *SupplyStore {
	return &SupplyStore{
		byAsset: make(map[string]*domain.CirculatingSupply),
	}
}

// Upsert inserts or replaces the supply of one asset.
func (s *SupplyStore) Upsert(_ context.Context, sup *domain.CirculatingSupply) error {
	if err := storage.ValidateSupply(sup); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	supCopy := *sup
	s.byAsset[sup.Asset] = &supCopy
	return nil
}

// UpsertBulk validates every record first, then applies them all.
func (s *SupplyStore) UpsertBulk(_ context.Context, supplies []*domain.CirculatingSupply) error {
	for _, sup := range supplies {
		if err := storage.ValidateSupply(sup); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sup := range supplies {
		supCopy := *sup
		s.byAsset[sup.Asset] = &supCopy
	}
	return nil
}

// GetByAsset retrieves the supply of one asset. Returns ErrNotFound if not exists.
func (s *SupplyStore) GetByAsset(_ context.Context, asset string) (*domain.CirculatingSupply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, exists := s.byAsset[asset]
	if !exists {
		return nil, storage.ErrNotFound
	}

	supCopy := *sup
	return &supCopy, nil
}

// GetAll retrieves every record ordered by asset ASC.
func (s *SupplyStore) GetAll(_ context.Context) ([]*domain.CirculatingSupply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CirculatingSupply, 0, len(s.byAsset))
	for _, sup := range s.byAsset {
		supCopy := *sup
		result = append(result, &supCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Asset < result[j].Asset
	})
	return result, nil
}

var _ storage.SupplyStore = (*SupplyStore)(nil)
