// Package metrics summarises simulated provision distributions and maps
// between risk levels and provision amounts.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"provision-risk-lab/internal/domain"
)

// Trim bounds, as percentiles.
const (
	trimLower = 1.0
	trimUpper = 99.0
)

// Trim drops values below P1 or above P99 of the input.
// Order of the surviving values is preserved.
func Trim(values []float64) []float64 {
	if len(values) == 0 {
		return []float64{}
	}
	sorted := sortedCopy(values)
	lo := computePercentile(sorted, trimLower/100)
	hi := computePercentile(sorted, trimUpper/100)

	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out
}

// ComputeRisk summarises the simulated provisions (real provision excluded).
// Fewer than two values, or nothing left after trimming, yields
// domain.EmptyRiskMetrics().
func ComputeRisk(simulated []float64, alpha float64) *domain.RiskMetrics {
	if len(simulated) < 2 {
		return domain.EmptyRiskMetrics()
	}
	trimmed := Trim(simulated)
	if len(trimmed) == 0 {
		return domain.EmptyRiskMetrics()
	}
	sorted := sortedCopy(trimmed)

	percentiles := make(map[string]float64, len(domain.PercentileLevels))
	for _, lvl := range domain.PercentileLevels {
		percentiles[lvl.Label] = computePercentile(sorted, lvl.Level/100)
	}

	tail := (1 - alpha) / 2
	mean, std := stat.PopMeanStdDev(trimmed, nil)

	return &domain.RiskMetrics{
		Percentiles: percentiles,
		ConfidenceInterval: &domain.ConfidenceInterval{
			Lower: computePercentile(sorted, tail),
			Upper: computePercentile(sorted, 1-tail),
			Alpha: alpha,
		},
		Mean:         mean,
		Std:          std,
		TrimmedCount: len(trimmed),
	}
}

// ProvisionFor returns the provision covering all but riskLevel percent of
// outcomes, i.e. P(100 - riskLevel) of the trimmed distribution.
// Returns 0 when statistics are undefined.
func ProvisionFor(simulated []float64, riskLevel float64) float64 {
	if len(simulated) < 2 {
		return 0
	}
	trimmed := Trim(simulated)
	if len(trimmed) == 0 {
		return 0
	}
	return computePercentile(sortedCopy(trimmed), (100-riskLevel)/100)
}

// RiskLevelFor returns the integer risk level whose provision is closest to
// target. Candidates are the percentiles 1..99 of the trimmed distribution;
// ties resolve to the lowest percentile. The result is quantised, so
// RiskLevelFor(ProvisionFor(x, r)) may differ from r by a few points.
// Returns 0 when statistics are undefined.
func RiskLevelFor(simulated []float64, target float64) float64 {
	if len(simulated) < 2 {
		return 0
	}
	trimmed := Trim(simulated)
	if len(trimmed) == 0 {
		return 0
	}
	sorted := sortedCopy(trimmed)

	best := 0
	bestDiff := math.Inf(1)
	for i := 0; i < 99; i++ {
		diff := math.Abs(computePercentile(sorted, float64(i+1)/100) - target)
		if diff < bestDiff {
			best = i
			bestDiff = diff
		}
	}
	return float64(100 - (best + 1))
}
