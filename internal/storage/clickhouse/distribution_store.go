package clickhouse

import (
	"context"
	"fmt"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/storage"
)

// DistributionStore implements storage.DistributionStore using ClickHouse.
type DistributionStore struct {
	conn *Conn
}

// NewDistributionStore creates a new DistributionStore.
func NewDistributionStore(conn *Conn) *DistributionStore {
	return &DistributionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DistributionStore = (*DistributionStore)(nil)

// InsertBulk stores one row per simulated provision.
// MergeTree does not enforce uniqueness, so an existing distribution is
// checked for explicitly.
func (s *DistributionStore) InsertBulk(ctx context.Context, simulationID string, method domain.Method, values []float64) error {
	if simulationID == "" {
		return storage.ErrInvalidInput
	}
	if len(values) == 0 {
		return nil
	}

	exists, err := s.exists(ctx, simulationID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO provision_distributions (
			simulation_id, method, sample_index, provision
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, v := range values {
		if err := batch.Append(simulationID, string(method), uint32(i), v); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySimulationID retrieves provisions ordered by sample index.
func (s *DistributionStore) GetBySimulationID(ctx context.Context, simulationID string) ([]float64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT provision
		FROM provision_distributions
		WHERE simulation_id = ?
		ORDER BY sample_index ASC
	`, simulationID)
	if err != nil {
		return nil, fmt.Errorf("query distribution: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan provision: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distribution: %w", err)
	}
	if len(values) == 0 {
		return nil, storage.ErrNotFound
	}
	return values, nil
}

// exists checks whether any rows are stored for the simulation.
func (s *DistributionStore) exists(ctx context.Context, simulationID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM provision_distributions
		WHERE simulation_id = ?
	`, simulationID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
