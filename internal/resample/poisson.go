package resample

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"provision-risk-lab/internal/domain"
)

// MonteCarloPoisson redraws every cell from Poisson(λ), where λ is the mean
// of that denomination column across the rows of the cell's bucket.
// Rows are perturbed independently; only the group mean is preserved.
type MonteCarloPoisson struct {
	src rand.Source
}

// NewMonteCarloPoisson creates a Poisson resampler.
func NewMonteCarloPoisson(src rand.Source) *MonteCarloPoisson {
	return &MonteCarloPoisson{src: src}
}

// Method implements Resampler.
func (p *MonteCarloPoisson) Method() domain.Method {
	return domain.MethodMonteCarlo
}

// Resample implements Resampler.
// A group holding a missing or non-numeric cell has no usable mean and is
// zeroed like a group whose mean is not positive; other groups are drawn as
// usual. An infinite mean yields ErrMalformedColumn.
func (p *MonteCarloPoisson) Resample(l *domain.Ledger) (*domain.Ledger, error) {
	b := l.Builder()
	cols := l.DenominationColumns()

	for _, bucket := range l.Buckets() {
		for _, c := range cols {
			lambda := groupMean(l, bucket.Rows, c)
			if math.IsInf(lambda, 0) {
				return nil, fmt.Errorf("%w: column %q bucket %q", ErrMalformedColumn, l.Column(c).Label, bucket.Key)
			}

			if math.IsNaN(lambda) || lambda <= 0 {
				for _, r := range bucket.Rows {
					b.Set(r, c, 0)
				}
				continue
			}

			dist := distuv.Poisson{Lambda: lambda, Src: p.src}
			for _, r := range bucket.Rows {
				b.Set(r, c, dist.Rand())
			}
		}
	}

	return b.Build(), nil
}

// groupMean averages column c over rows. NaN cells propagate.
func groupMean(l *domain.Ledger, rows []int, c int) float64 {
	if len(rows) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rows {
		sum += l.Value(r, c)
	}
	return sum / float64(len(rows))
}
