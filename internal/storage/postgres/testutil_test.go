package postgres

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"provision-risk-lab/internal/domain"
)

// setupTestDB starts a PostgreSQL container with the simulation schema applied.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("provisions"),
		postgres.WithUsername("lab"),
		postgres.WithPassword("lab"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "connection string")

	pool, err := NewPool(ctx, dsn, WithMaxConns(4))
	require.NoError(t, err, "create pool")

	applySchema(t, ctx, pool)

	return pool, func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
}

// applySchema executes the postgres migration files in lexical order. The
// migrations package depends on this one, so the files are read from disk.
func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	dir := filepath.Join(moduleRoot(t), "internal", "storage", "migrations", "postgres")
	files, err := fs.Glob(os.DirFS(dir), "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no migrations in %s", dir)

	for _, name := range files {
		sql, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, "read %s", name)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "apply %s", name)
	}
}

func moduleRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}

// pendingSimulation returns a freshly submitted simulation for owner.
func pendingSimulation(id, owner string, created time.Time) *domain.Simulation {
	return &domain.Simulation{
		ID:                  id,
		OwnerID:             owner,
		Method:              domain.MethodMonteCarlo,
		Samples:             100,
		Alpha:               0.95,
		Status:              domain.StatusPending,
		LendingFingerprint:  "Lfp",
		RecoveryFingerprint: "Rfp",
		CreatedAt:           created,
	}
}

// completeSimulation fills sim with the results of a finished run over the
// four-day reference ledgers (real provision 1400).
func completeSimulation(sim *domain.Simulation) {
	started := sim.CreatedAt.Add(time.Second)
	done := sim.CreatedAt.Add(time.Minute)
	provision := 1400.0

	sim.Status = domain.StatusCompleted
	sim.RealProvision = &provision
	sim.RealCumulative = []float64{800, 1400, 0, 600}
	sim.SimulatedProvisions = []float64{1200, 1500, 1350}
	sim.Trajectories = [][]float64{{700, 1200, 100, 500}, {900, 1500, 200, 800}}
	sim.Risk = &domain.RiskMetrics{
		Percentiles:        map[string]float64{"50%": 1350},
		ConfidenceInterval: &domain.ConfidenceInterval{Lower: 1200, Upper: 1500, Alpha: sim.Alpha},
		Mean:               1350,
		Std:                122.47,
		TrimmedCount:       1,
	}
	sim.StartedAt = &started
	sim.CompletedAt = &done
}

// seedCompletedSimulation inserts a simulation and moves it through to
// completed the way the service does: insert pending, then update.
func seedCompletedSimulation(t *testing.T, store *SimulationStore, id, owner string, created time.Time) *domain.Simulation {
	t.Helper()

	sim := pendingSimulation(id, owner, created)
	require.NoError(t, store.Insert(context.Background(), sim))
	completeSimulation(sim)
	require.NoError(t, store.Update(context.Background(), sim))
	return sim
}
