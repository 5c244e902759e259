// Package provision turns ledger pairs into net cash-flow trajectories and
// the peak provision they require.
package provision

import (
	"math"

	"provision-risk-lab/internal/domain"
)

// Result is a provision estimate and the trajectory it was taken from.
type Result struct {
	Provision  float64
	Trajectory []float64
}

// WeightedSum returns Σ(denomination × cell) for every row, in row order.
// Missing or non-numeric cells contribute 0. A ledger with no denomination
// columns yields zeros.
func WeightedSum(l *domain.Ledger) []float64 {
	n := l.Len()
	sums := make([]float64, n)
	if l == nil {
		return sums
	}
	for _, c := range l.DenominationColumns() {
		face := l.Column(c).Denomination
		for r := 0; r < n; r++ {
			v := l.Value(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			sums[r] += face * v
		}
	}
	return sums
}

// Cumulative returns the running sum of (lending[i] - recovery[i]) over the
// shorter of the two sequences. Rows beyond that length are dropped.
func Cumulative(lending, recovery []float64) []float64 {
	n := len(lending)
	if len(recovery) < n {
		n = len(recovery)
	}
	if n == 0 {
		return []float64{}
	}

	trajectory := make([]float64, n)
	running := 0.0
	for i := 0; i < n; i++ {
		running += lending[i] - recovery[i]
		trajectory[i] = running
	}
	return trajectory
}

// Peak returns max(trajectory), or 0 for an empty trajectory.
func Peak(trajectory []float64) float64 {
	if len(trajectory) == 0 {
		return 0
	}
	peak := trajectory[0]
	for _, v := range trajectory[1:] {
		if v > peak {
			peak = v
		}
	}
	return peak
}

// Calculate computes the provision required by a lending/recovery pair.
func Calculate(lending, recovery *domain.Ledger) Result {
	trajectory := Cumulative(WeightedSum(lending), WeightedSum(recovery))
	return Result{
		Provision:  Peak(trajectory),
		Trajectory: trajectory,
	}
}

// RealCumulative returns the net-flow trajectory of the unresampled ledgers.
func RealCumulative(lending, recovery *domain.Ledger) []float64 {
	return Cumulative(WeightedSum(lending), WeightedSum(recovery))
}
