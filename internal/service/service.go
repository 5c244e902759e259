// Package service runs provision estimations off the request path and
// tracks their lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/idhash"
	"provision-risk-lab/internal/metrics"
	"provision-risk-lab/internal/observability"
	"provision-risk-lab/internal/provision"
	"provision-risk-lab/internal/simulation"
	"provision-risk-lab/internal/storage"
)

// Service errors
var (
	ErrInvalidMethod  = errors.New("method must be montecarlo or bootstrap")
	ErrInvalidSamples = fmt.Errorf("num_samples must be in [%d, %d]", domain.MinSamples, domain.MaxSamples)
	ErrInvalidAlpha   = errors.New("alpha must be in (0, 1)")
	ErrMissingLedger  = errors.New("lending and recovery ledgers are required")
	ErrNotCompleted   = errors.New("simulation is not completed")
	ErrShuttingDown   = errors.New("service is shutting down")
)

// MaxTrajectories caps the sample paths kept per simulation.
const MaxTrajectories = 10

// Failure reasons recorded on simulations.
const (
	ReasonTimeout  = "timeout"
	ReasonShutdown = "shutdown"
	ReasonStale    = "stale: no progress within the run budget"
)

// Options contains configuration for creating a Service.
type Options struct {
	Store         storage.SimulationStore
	Distributions storage.DistributionStore // optional analytics sink
	Logger        logrus.FieldLogger

	DefaultSamples  int
	DefaultAlpha    float64
	Workers         int
	Timeout         time.Duration
	MaxConcurrent   int
	TrajectoryCount int
	Seed            uint64 // zero seeds every run from the clock
}

// CreateRequest describes a new estimation.
// Zero Samples or Alpha select the configured defaults.
type CreateRequest struct {
	Lending  *domain.Ledger
	Recovery *domain.Ledger
	Method   string
	Samples  int
	Alpha    float64
}

// Service creates simulations and runs them in the background.
type Service struct {
	store  storage.SimulationStore
	dists  storage.DistributionStore
	logger logrus.FieldLogger
	opts   Options

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex          // serialises status transitions
	active map[string]struct{} // simulations owned by this process
	hub    *hub

	now   func() time.Time
	newID func() string
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.DefaultSamples == 0 {
		opts.DefaultSamples = domain.DefaultSamples
	}
	if opts.DefaultAlpha == 0 {
		opts.DefaultAlpha = domain.DefaultAlpha
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.TrajectoryCount < 0 {
		opts.TrajectoryCount = 0
	}
	if opts.TrajectoryCount > MaxTrajectories {
		opts.TrajectoryCount = MaxTrajectories
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:  opts.Store,
		dists:  opts.Distributions,
		logger: opts.Logger,
		opts:   opts,
		sem:    make(chan struct{}, opts.MaxConcurrent),
		ctx:    ctx,
		cancel: cancel,
		active: make(map[string]struct{}),
		hub:    newHub(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Create validates req, persists a pending simulation and starts it.
func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (*domain.Simulation, error) {
	method, ok := domain.ParseMethod(req.Method)
	if !ok {
		return nil, ErrInvalidMethod
	}
	samples := req.Samples
	if samples == 0 {
		samples = s.opts.DefaultSamples
	}
	if samples < domain.MinSamples || samples > domain.MaxSamples {
		return nil, ErrInvalidSamples
	}
	alpha := req.Alpha
	if alpha == 0 {
		alpha = s.opts.DefaultAlpha
	}
	if !(alpha > 0 && alpha < 1) {
		return nil, ErrInvalidAlpha
	}
	if req.Lending == nil || req.Recovery == nil {
		return nil, ErrMissingLedger
	}
	if s.ctx.Err() != nil {
		return nil, ErrShuttingDown
	}

	sim := &domain.Simulation{
		ID:                  s.newID(),
		OwnerID:             ownerID,
		Method:              method,
		Samples:             samples,
		Alpha:               alpha,
		Status:              domain.StatusPending,
		LendingFingerprint:  idhash.LedgerFingerprint(req.Lending),
		RecoveryFingerprint: idhash.LedgerFingerprint(req.Recovery),
		CreatedAt:           s.now(),
	}

	if err := s.timed("insert", func() error { return s.store.Insert(ctx, sim) }); err != nil {
		return nil, fmt.Errorf("persist simulation: %w", err)
	}

	// Registration and the shutdown check share s.mu with Shutdown, so no
	// run starts after Shutdown begins waiting.
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		s.fail(sim.ID, ReasonShutdown)
		return nil, ErrShuttingDown
	}
	s.active[sim.ID] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"simulation_id": sim.ID,
		"method":        sim.Method,
		"samples":       sim.Samples,
	}).Info("simulation created")
	s.publish(sim)

	go s.run(sim.ID, req.Lending, req.Recovery)

	return sim.Clone(), nil
}

// Get returns a simulation owned by ownerID.
// Simulations of other owners are reported as storage.ErrNotFound.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*domain.Simulation, error) {
	sim, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sim.OwnerID != ownerID {
		return nil, storage.ErrNotFound
	}
	return sim, nil
}

// List returns the owner's simulations, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]*domain.Simulation, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Status returns the current lifecycle state of a simulation.
func (s *Service) Status(ctx context.Context, ownerID, id string) (domain.StatusEvent, error) {
	sim, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return domain.StatusEvent{}, err
	}
	return statusEvent(sim, s.now()), nil
}

// Results returns a completed simulation with its distribution,
// risk metrics and sample trajectories.
func (s *Service) Results(ctx context.Context, ownerID, id string) (*domain.Simulation, error) {
	sim, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if sim.Status != domain.StatusCompleted {
		return nil, ErrNotCompleted
	}
	return sim, nil
}

// Subscribe streams status events of one simulation. The channel closes
// after a terminal event or when cancel is called.
func (s *Service) Subscribe(id string) (<-chan domain.StatusEvent, func()) {
	return s.hub.subscribe(id)
}

// Shutdown stops accepting work, cancels running simulations and waits for
// them to record their final state.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run executes one simulation to a terminal state.
func (s *Service) run(id string, lending, recovery *domain.Ledger) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.active, id)
		s.mu.Unlock()
	}()

	log := s.logger.WithField("simulation_id", id)

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-s.ctx.Done():
		s.fail(id, ReasonShutdown)
		return
	}

	sim, ok := s.transition(id, func(sim *domain.Simulation) {
		started := s.now()
		sim.Status = domain.StatusRunning
		sim.StartedAt = &started
	})
	if !ok {
		return
	}
	method, alpha := sim.Method, sim.Alpha
	observability.RecordSimulationStarted(string(method))
	start := time.Now()

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()

	dist, err := simulation.Estimate(ctx, lending, recovery, simulation.Params{
		Method:  method,
		Samples: sim.Samples,
		Alpha:   alpha,
		Workers: s.opts.Workers,
		Seed:    s.opts.Seed,
		Logger:  log,
	})
	var trajectories [][]float64
	if err == nil && s.opts.TrajectoryCount > 0 {
		trajectories, err = simulation.Trajectories(ctx, lending, recovery, method, s.opts.TrajectoryCount, s.opts.Seed)
	}

	if err != nil {
		reason := err.Error()
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = ReasonTimeout
		case errors.Is(err, context.Canceled):
			reason = ReasonShutdown
		}
		log.WithError(err).WithField("reason", reason).Warn("simulation failed")
		s.fail(id, reason)
		observability.RecordSimulationFinished(string(method), string(domain.StatusFailed), time.Since(start).Seconds(), 0, 0)
		return
	}

	simulated := dist.Simulated()
	_, ok = s.transition(id, func(sim *domain.Simulation) {
		realProvision := dist.Real()
		completed := s.now()
		sim.Status = domain.StatusCompleted
		sim.RealProvision = &realProvision
		sim.RealCumulative = provision.RealCumulative(lending, recovery)
		sim.SimulatedProvisions = simulated
		sim.Trajectories = trajectories
		sim.Risk = metrics.ComputeRisk(simulated, alpha)
		sim.Fallbacks = dist.Fallbacks
		sim.CompletedAt = &completed
	})
	status := domain.StatusCompleted
	if !ok {
		status = domain.StatusFailed
	}
	observability.RecordSimulationFinished(string(method), string(status), time.Since(start).Seconds(), len(simulated), dist.Fallbacks)
	if !ok {
		return
	}

	log.WithFields(logrus.Fields{
		"real_provision": dist.Real(),
		"fallbacks":      dist.Fallbacks,
		"duration":       time.Since(start).String(),
	}).Info("simulation completed")

	if s.dists != nil {
		err := s.timed("insert_distribution", func() error {
			return s.dists.InsertBulk(context.Background(), id, method, simulated)
		})
		if err != nil {
			log.WithError(err).Error("failed to store distribution")
		}
	}
}

// fail moves a non-terminal simulation to failed with reason.
func (s *Service) fail(id, reason string) bool {
	_, ok := s.transition(id, func(sim *domain.Simulation) {
		completed := s.now()
		sim.Status = domain.StatusFailed
		sim.Error = reason
		sim.CompletedAt = &completed
	})
	return ok
}

// transition applies mutate to a non-terminal simulation, persists it and
// publishes the new status. It reports false when the simulation is already
// terminal or could not be loaded or saved.
func (s *Service) transition(id string, mutate func(*domain.Simulation)) (*domain.Simulation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Persist final states even while shutting down.
	ctx := context.Background()
	log := s.logger.WithField("simulation_id", id)

	sim, err := s.store.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("failed to load simulation")
		return nil, false
	}
	if sim.Status.Terminal() {
		return sim, false
	}

	mutate(sim)
	if err := s.timed("update", func() error { return s.store.Update(ctx, sim) }); err != nil {
		log.WithError(err).Error("failed to update simulation")
		return nil, false
	}

	s.publish(sim)
	return sim, true
}

func (s *Service) publish(sim *domain.Simulation) {
	s.hub.publish(statusEvent(sim, s.now()))
}

// timed runs a store operation and records its duration.
func (s *Service) timed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	observability.RecordDBQuery("simulations", operation, time.Since(start).Seconds(), err)
	return err
}

func statusEvent(sim *domain.Simulation, at time.Time) domain.StatusEvent {
	return domain.StatusEvent{
		SimulationID: sim.ID,
		Status:       sim.Status,
		Error:        sim.Error,
		At:           at,
	}
}
