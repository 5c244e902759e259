package memory

import (
	"context"
	"sync"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/storage"
)

// DistributionStore is an in-memory implementation of storage.DistributionStore.
type DistributionStore struct {
	mu   sync.RWMutex
	data map[string][]float64 // keyed by simulation id
}

// NewDistributionStore creates a new in-memory distribution store.
func NewDistributionStore() *DistributionStore {
	return &DistributionStore{
		data: make(map[string][]float64),
	}
}

// InsertBulk stores the simulated provisions of one simulation.
func (s *DistributionStore) InsertBulk(_ context.Context, simulationID string, _ domain.Method, values []float64) error {
	if simulationID == "" {
		return storage.ErrInvalidInput
	}
	if len(values) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[simulationID]; exists {
		return storage.ErrDuplicateKey
	}

	stored := make([]float64, len(values))
	copy(stored, values)
	s.data[simulationID] = stored
	return nil
}

// GetBySimulationID retrieves provisions ordered by sample index.
func (s *DistributionStore) GetBySimulationID(_ context.Context, simulationID string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, exists := s.data[simulationID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	out := make([]float64, len(values))
	copy(out, values)
	return out, nil
}

var _ storage.DistributionStore = (*DistributionStore)(nil)
