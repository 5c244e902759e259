package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provision-risk-lab/internal/domain"
)

func TestSweepStale(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Timeout = time.Minute })
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time { return now }

	old := now.Add(-time.Hour)
	recent := now.Add(-30 * time.Second)
	sims := []*domain.Simulation{
		{ID: "stale-running", Status: domain.StatusRunning, CreatedAt: old, StartedAt: &old},
		{ID: "stale-pending", Status: domain.StatusPending, CreatedAt: old},
		{ID: "fresh-running", Status: domain.StatusRunning, CreatedAt: old, StartedAt: &recent},
		{ID: "owned-pending", Status: domain.StatusPending, CreatedAt: old},
		{ID: "done", Status: domain.StatusCompleted, CreatedAt: old},
	}
	for _, sim := range sims {
		sim.OwnerID = "alice"
		require.NoError(t, env.store.Insert(ctx, sim))
	}
	env.svc.active["owned-pending"] = struct{}{}

	n, err := env.svc.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want := map[string]domain.Status{
		"stale-running": domain.StatusFailed,
		"stale-pending": domain.StatusFailed,
		"fresh-running": domain.StatusRunning,
		"owned-pending": domain.StatusPending,
		"done":          domain.StatusCompleted,
	}
	for id, status := range want {
		sim, err := env.store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, sim.Status, id)
		if status == domain.StatusFailed {
			assert.Equal(t, ReasonStale, sim.Error)
		}
	}
}

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := NewSweeper(env.svc, "not a schedule", nil)
	assert.Error(t, err)

	sw, err := NewSweeper(env.svc, "@every 1h", nil)
	require.NoError(t, err)
	sw.Start()
	sw.Stop(context.Background())
}
