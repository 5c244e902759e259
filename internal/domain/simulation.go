package domain

import (
	"strings"
	"time"
)

// Method is the resampling hypothesis used to build a provision distribution.
type Method string

// Resampling methods
const (
	MethodMonteCarlo Method = "montecarlo"
	MethodBootstrap  Method = "bootstrap"
)

// ParseMethod normalises a method name. ok is false for unknown names.
func ParseMethod(s string) (Method, bool) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case MethodMonteCarlo:
		return MethodMonteCarlo, true
	case MethodBootstrap:
		return MethodBootstrap, true
	default:
		return "", false
	}
}

// Status is the lifecycle state of a Simulation.
type Status string

// Simulation statuses
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Sample bounds accepted at the request boundary.
const (
	MinSamples     = 10
	MaxSamples     = 15000
	DefaultSamples = 1000
	DefaultAlpha   = 0.95
)

// ProvisionDistribution holds the real provision followed by N simulated ones.
// Values[0] is the real provision.
type ProvisionDistribution struct {
	Method    Method
	Values    []float64
	Fallbacks int // iterations where a resampler returned the original ledger
}

// Real returns the real (unresampled) provision.
func (d *ProvisionDistribution) Real() float64 {
	if d == nil || len(d.Values) == 0 {
		return 0
	}
	return d.Values[0]
}

// Simulated returns the simulated provisions (everything after index 0).
func (d *ProvisionDistribution) Simulated() []float64 {
	if d == nil || len(d.Values) < 2 {
		return nil
	}
	return d.Values[1:]
}

// Simulation is a persisted estimation request and its results.
type Simulation struct {
	ID      string
	OwnerID string
	Method  Method
	Samples int
	Alpha   float64
	Status  Status
	Error   string

	LendingFingerprint  string
	RecoveryFingerprint string

	// Results, populated once Status is completed.
	RealProvision       *float64
	RealCumulative      []float64
	SimulatedProvisions []float64
	Trajectories        [][]float64 // a few simulated cumulative paths for plotting
	Risk                *RiskMetrics
	Fallbacks           int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// StatusEvent is emitted on every status transition.
type StatusEvent struct {
	SimulationID string    `json:"simulation_id"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// Clone returns a deep copy.
func (s *Simulation) Clone() *Simulation {
	if s == nil {
		return nil
	}
	c := *s
	if s.RealProvision != nil {
		v := *s.RealProvision
		c.RealProvision = &v
	}
	c.RealCumulative = cloneFloats(s.RealCumulative)
	c.SimulatedProvisions = cloneFloats(s.SimulatedProvisions)
	if s.Trajectories != nil {
		c.Trajectories = make([][]float64, len(s.Trajectories))
		for i, t := range s.Trajectories {
			c.Trajectories[i] = cloneFloats(t)
		}
	}
	if s.Risk != nil {
		r := *s.Risk
		r.Percentiles = make(map[string]float64, len(s.Risk.Percentiles))
		for k, v := range s.Risk.Percentiles {
			r.Percentiles[k] = v
		}
		if s.Risk.ConfidenceInterval != nil {
			ci := *s.Risk.ConfidenceInterval
			r.ConfidenceInterval = &ci
		}
		c.Risk = &r
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
