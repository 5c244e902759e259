package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/observability"
)

// SweepStale fails simulations left pending or running by a previous process.
// A simulation is stale when this process does not own it and it has made no
// progress for twice the run timeout. Returns the number of simulations failed.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-2 * s.opts.Timeout)
	swept := 0

	for _, status := range []domain.Status{domain.StatusPending, domain.StatusRunning} {
		sims, err := s.store.ListByStatus(ctx, status)
		if err != nil {
			return swept, fmt.Errorf("list %s simulations: %w", status, err)
		}
		for _, sim := range sims {
			last := sim.CreatedAt
			if sim.StartedAt != nil {
				last = *sim.StartedAt
			}
			if !last.Before(cutoff) || s.owns(sim.ID) {
				continue
			}
			if s.fail(sim.ID, ReasonStale) {
				swept++
				s.logger.WithFields(logrus.Fields{
					"simulation_id": sim.ID,
					"status":        status,
				}).Warn("stale simulation failed")
			}
		}
	}

	observability.RecordSwept(swept)
	return swept, nil
}

func (s *Service) owns(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	return ok
}

// Sweeper runs SweepStale on a cron schedule.
type Sweeper struct {
	svc    *Service
	cron   *cron.Cron
	logger logrus.FieldLogger
}

// NewSweeper schedules svc.SweepStale. schedule uses standard five-field cron
// syntax or descriptors such as "@every 1m".
func NewSweeper(svc *Service, schedule string, logger logrus.FieldLogger) (*Sweeper, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	sw := &Sweeper{
		svc:    svc,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
	if _, err := sw.cron.AddFunc(schedule, sw.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return sw, nil
}

// Start begins running sweeps in the background.
func (sw *Sweeper) Start() {
	sw.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (sw *Sweeper) Stop(ctx context.Context) {
	select {
	case <-sw.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (sw *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := sw.svc.SweepStale(ctx)
	if err != nil {
		sw.logger.WithError(err).Error("sweep failed")
		return
	}
	if n > 0 {
		sw.logger.WithField("swept", n).Info("sweep completed")
	}
}
