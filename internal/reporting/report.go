package reporting

import (
	"time"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/metrics"
)

// StandardRiskLevels are the risk levels tabulated in every report.
var StandardRiskLevels = []float64{0.5, 1, 2.5, 5, 10, 25}

// Report summarises one provision distribution.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	SimulationID string
	Method       domain.Method
	Alpha        float64

	// Distribution
	RealProvision  float64
	SimulatedCount int
	Fallbacks      int
	Risk           *domain.RiskMetrics

	// Provision required at each of StandardRiskLevels
	RiskLevels []RiskLevelRow
}

// RiskLevelRow pairs a risk level with the provision covering it.
type RiskLevelRow struct {
	RiskLevel float64
	Provision float64
}

// Build assembles a report from a distribution whose first value is the
// real provision.
func Build(simulationID string, dist *domain.ProvisionDistribution, alpha float64, now time.Time) *Report {
	simulated := dist.Simulated()

	r := &Report{
		GeneratedAt:    now,
		SimulationID:   simulationID,
		Method:         dist.Method,
		Alpha:          alpha,
		RealProvision:  dist.Real(),
		SimulatedCount: len(simulated),
		Fallbacks:      dist.Fallbacks,
		Risk:           metrics.ComputeRisk(simulated, alpha),
	}

	for _, level := range StandardRiskLevels {
		r.RiskLevels = append(r.RiskLevels, RiskLevelRow{
			RiskLevel: level,
			Provision: metrics.ProvisionFor(simulated, level),
		})
	}
	return r
}
