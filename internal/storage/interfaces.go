package storage

import (
	"context"

	"provision-risk-lab/internal/domain"
)

// SimulationStore provides access to simulations storage.
type SimulationStore interface {
	// Insert adds a new simulation. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, s *domain.Simulation) error

	// Update replaces a stored simulation. Returns ErrNotFound if not exists.
	Update(ctx context.Context, s *domain.Simulation) error

	// GetByID retrieves a simulation by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Simulation, error)

	// ListByOwner retrieves an owner's simulations, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Simulation, error)

	// ListByStatus retrieves simulations in a status, oldest first.
	ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Simulation, error)
}

// DistributionStore provides access to per-sample provision storage
// used for analytics across simulations.
type DistributionStore interface {
	// InsertBulk stores the simulated provisions of one simulation, in sample order.
	// Returns ErrDuplicateKey if the simulation already has a distribution.
	InsertBulk(ctx context.Context, simulationID string, method domain.Method, values []float64) error

	// GetBySimulationID retrieves provisions ordered by sample index.
	// Returns ErrNotFound if the simulation has no distribution.
	GetBySimulationID(ctx context.Context, simulationID string) ([]float64, error)
}
