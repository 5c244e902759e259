package service

import (
	"context"
	"errors"

	"provision-risk-lab/internal/metrics"
	"provision-risk-lab/internal/observability"
)

// Risk query directions
const (
	DirectionRiskToProvision = "risk_to_provision"
	DirectionProvisionToRisk = "provision_to_risk"
)

// Risk level bounds, in percent.
const (
	MinRiskLevel = 0.1
	MaxRiskLevel = 99.9
)

// Risk query errors
var (
	ErrInvalidDirection = errors.New("direction must be risk_to_provision or provision_to_risk")
	ErrInvalidRiskLevel = errors.New("risk_level must be in [0.1, 99.9]")
	ErrInvalidTarget    = errors.New("target_provision must be a non-negative number")
)

// RiskRequest asks either for the provision at a risk level or for the risk
// level of a target provision.
type RiskRequest struct {
	Direction       string   `json:"direction"`
	RiskLevel       *float64 `json:"risk_level,omitempty"`
	TargetProvision *float64 `json:"target_provision,omitempty"`
}

// Validate checks the fields required by Direction.
func (r RiskRequest) Validate() error {
	switch r.Direction {
	case DirectionRiskToProvision:
		if r.RiskLevel == nil || *r.RiskLevel < MinRiskLevel || *r.RiskLevel > MaxRiskLevel {
			return ErrInvalidRiskLevel
		}
	case DirectionProvisionToRisk:
		if r.TargetProvision == nil || !(*r.TargetProvision >= 0) {
			return ErrInvalidTarget
		}
	default:
		return ErrInvalidDirection
	}
	return nil
}

// RiskResult pairs a risk level with its provision.
type RiskResult struct {
	SimulationID string  `json:"simulation_id"`
	Direction    string  `json:"direction"`
	RiskLevel    float64 `json:"risk_level"`
	Provision    float64 `json:"provision"`
}

// Risk answers a risk query against a completed simulation.
func (s *Service) Risk(ctx context.Context, ownerID, id string, req RiskRequest) (*RiskResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sim, err := s.Results(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	res := &RiskResult{SimulationID: sim.ID, Direction: req.Direction}
	switch req.Direction {
	case DirectionRiskToProvision:
		res.RiskLevel = *req.RiskLevel
		res.Provision = metrics.ProvisionFor(sim.SimulatedProvisions, *req.RiskLevel)
	case DirectionProvisionToRisk:
		res.Provision = *req.TargetProvision
		res.RiskLevel = metrics.RiskLevelFor(sim.SimulatedProvisions, *req.TargetProvision)
	}

	observability.RecordRiskQuery(req.Direction)
	return res, nil
}
