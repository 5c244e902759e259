package reporting

import (
	"context"
	"errors"
	"time"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/storage"
)

// ErrNotCompleted is returned when reporting on an unfinished simulation.
var ErrNotCompleted = errors.New("simulation is not completed")

// Generator produces reports from stored simulations.
type Generator struct {
	store storage.SimulationStore
	now   func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(store storage.SimulationStore) *Generator {
	return &Generator{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of a completed simulation.
func (g *Generator) Generate(ctx context.Context, simulationID string) (*Report, error) {
	sim, err := g.store.GetByID(ctx, simulationID)
	if err != nil {
		return nil, err
	}
	if sim.Status != domain.StatusCompleted || sim.RealProvision == nil {
		return nil, ErrNotCompleted
	}

	values := make([]float64, 0, len(sim.SimulatedProvisions)+1)
	values = append(values, *sim.RealProvision)
	values = append(values, sim.SimulatedProvisions...)

	return Build(sim.ID, &domain.ProvisionDistribution{
		Method:    sim.Method,
		Values:    values,
		Fallbacks: sim.Fallbacks,
	}, sim.Alpha, g.now()), nil
}
