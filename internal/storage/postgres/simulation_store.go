package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/storage"
)

// SimulationStore implements storage.SimulationStore using PostgreSQL.
type SimulationStore struct {
	pool *Pool
}

// NewSimulationStore creates a new SimulationStore.
func NewSimulationStore(pool *Pool) *SimulationStore {
	return &SimulationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SimulationStore = (*SimulationStore)(nil)

const simulationColumns = `
	id, owner_id, method, samples, alpha, status, error,
	lending_fingerprint, recovery_fingerprint,
	real_provision, real_cumulative, simulated_provisions, trajectories, risk, fallbacks,
	created_at, started_at, completed_at
`

// Insert adds a new simulation. Returns ErrDuplicateKey if the ID exists.
func (s *SimulationStore) Insert(ctx context.Context, sim *domain.Simulation) error {
	if sim == nil || sim.ID == "" {
		return storage.ErrInvalidInput
	}

	trajectories, risk, err := encodeResults(sim)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO simulations (` + simulationColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9,
			$10, $11, $12, $13::jsonb, $14::jsonb, $15,
			$16, $17, $18
		)
	`

	_, err = s.pool.Exec(ctx, query,
		sim.ID, sim.OwnerID, string(sim.Method), sim.Samples, sim.Alpha, string(sim.Status), sim.Error,
		sim.LendingFingerprint, sim.RecoveryFingerprint,
		sim.RealProvision, sim.RealCumulative, sim.SimulatedProvisions, trajectories, risk, sim.Fallbacks,
		sim.CreatedAt, sim.StartedAt, sim.CompletedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

// Update replaces a stored simulation. Returns ErrNotFound if not exists.
func (s *SimulationStore) Update(ctx context.Context, sim *domain.Simulation) error {
	if sim == nil || sim.ID == "" {
		return storage.ErrInvalidInput
	}

	trajectories, risk, err := encodeResults(sim)
	if err != nil {
		return err
	}

	query := `
		UPDATE simulations SET
			owner_id = $2, method = $3, samples = $4, alpha = $5, status = $6, error = $7,
			lending_fingerprint = $8, recovery_fingerprint = $9,
			real_provision = $10, real_cumulative = $11, simulated_provisions = $12,
			trajectories = $13::jsonb, risk = $14::jsonb, fallbacks = $15,
			created_at = $16, started_at = $17, completed_at = $18
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		sim.ID, sim.OwnerID, string(sim.Method), sim.Samples, sim.Alpha, string(sim.Status), sim.Error,
		sim.LendingFingerprint, sim.RecoveryFingerprint,
		sim.RealProvision, sim.RealCumulative, sim.SimulatedProvisions, trajectories, risk, sim.Fallbacks,
		sim.CreatedAt, sim.StartedAt, sim.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update simulation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a simulation by its ID. Returns ErrNotFound if not exists.
func (s *SimulationStore) GetByID(ctx context.Context, id string) (*domain.Simulation, error) {
	query := `SELECT ` + simulationColumns + ` FROM simulations WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	sim, err := scanSimulation(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get simulation by id: %w", err)
	}
	return sim, nil
}

// ListByOwner retrieves an owner's simulations, newest first.
func (s *SimulationStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Simulation, error) {
	query := `
		SELECT ` + simulationColumns + `
		FROM simulations
		WHERE owner_id = $1
		ORDER BY created_at DESC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list simulations by owner: %w", err)
	}
	defer rows.Close()

	return scanSimulations(rows)
}

// ListByStatus retrieves simulations in a status, oldest first.
func (s *SimulationStore) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Simulation, error) {
	query := `
		SELECT ` + simulationColumns + `
		FROM simulations
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list simulations by status: %w", err)
	}
	defer rows.Close()

	return scanSimulations(rows)
}

// encodeResults marshals the JSONB result columns. Absent results encode as NULL.
func encodeResults(sim *domain.Simulation) (trajectories, risk *string, err error) {
	if sim.Trajectories != nil {
		b, err := json.Marshal(sim.Trajectories)
		if err != nil {
			return nil, nil, fmt.Errorf("encode trajectories: %w", err)
		}
		v := string(b)
		trajectories = &v
	}
	if sim.Risk != nil {
		b, err := json.Marshal(sim.Risk)
		if err != nil {
			return nil, nil, fmt.Errorf("encode risk metrics: %w", err)
		}
		v := string(b)
		risk = &v
	}
	return trajectories, risk, nil
}

// scanSimulation scans a single row into a Simulation.
func scanSimulation(row pgx.Row) (*domain.Simulation, error) {
	var (
		sim                  domain.Simulation
		method, status       string
		trajectories, risk   []byte
		startedAt, completed *time.Time
	)

	err := row.Scan(
		&sim.ID, &sim.OwnerID, &method, &sim.Samples, &sim.Alpha, &status, &sim.Error,
		&sim.LendingFingerprint, &sim.RecoveryFingerprint,
		&sim.RealProvision, &sim.RealCumulative, &sim.SimulatedProvisions, &trajectories, &risk, &sim.Fallbacks,
		&sim.CreatedAt, &startedAt, &completed,
	)
	if err != nil {
		return nil, err
	}

	sim.Method = domain.Method(method)
	sim.Status = domain.Status(status)
	sim.StartedAt = startedAt
	sim.CompletedAt = completed

	if len(trajectories) > 0 {
		if err := json.Unmarshal(trajectories, &sim.Trajectories); err != nil {
			return nil, fmt.Errorf("decode trajectories: %w", err)
		}
	}
	if len(risk) > 0 {
		sim.Risk = &domain.RiskMetrics{}
		if err := json.Unmarshal(risk, sim.Risk); err != nil {
			return nil, fmt.Errorf("decode risk metrics: %w", err)
		}
	}

	return &sim, nil
}

// scanSimulations scans multiple rows.
func scanSimulations(rows pgx.Rows) ([]*domain.Simulation, error) {
	var sims []*domain.Simulation
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		sims = append(sims, sim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate simulations: %w", err)
	}
	return sims, nil
}
