package memory

import (
	"context"
	"sort"
	"sync"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/storage"
)

// SimulationStore is an in-memory implementation of storage.SimulationStore.
type SimulationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Simulation // keyed by simulation id
}

// NewSimulationStore creates a new in-memory simulation store.
func NewSimulationStore() *SimulationStore {
	return &SimulationStore{
		data: make(map[string]*domain.Simulation),
	}
}

// Insert adds a new simulation. Returns ErrDuplicateKey if the ID exists.
func (s *SimulationStore) Insert(_ context.Context, sim *domain.Simulation) error {
	if sim == nil || sim.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sim.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[sim.ID] = sim.Clone()
	return nil
}

// Update replaces a stored simulation. Returns ErrNotFound if not exists.
func (s *SimulationStore) Update(_ context.Context, sim *domain.Simulation) error {
	if sim == nil || sim.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sim.ID]; !exists {
		return storage.ErrNotFound
	}

	s.data[sim.ID] = sim.Clone()
	return nil
}

// GetByID retrieves a simulation by its ID. Returns ErrNotFound if not exists.
func (s *SimulationStore) GetByID(_ context.Context, id string) (*domain.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sim, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return sim.Clone(), nil
}

// ListByOwner retrieves an owner's simulations, newest first.
func (s *SimulationStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Simulation
	for _, sim := range s.data {
		if sim.OwnerID == ownerID {
			result = append(result, sim.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// ListByStatus retrieves simulations in a status, oldest first.
func (s *SimulationStore) ListByStatus(_ context.Context, status domain.Status) ([]*domain.Simulation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Simulation
	for _, sim := range s.data {
		if sim.Status == status {
			result = append(result, sim.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ storage.SimulationStore = (*SimulationStore)(nil)
