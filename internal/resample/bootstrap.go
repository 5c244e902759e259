package resample

import (
	"fmt"

	"golang.org/x/exp/rand"

	"provision-risk-lab/internal/domain"
)

// BootstrapByDate replaces each bucket with the full row vectors of a bucket
// drawn uniformly with replacement from the ledger's distinct buckets.
// Intra-bucket joint structure across denominations is preserved.
type BootstrapByDate struct {
	rng *rand.Rand
}

// NewBootstrapByDate creates a bootstrap resampler.
func NewBootstrapByDate(src rand.Source) *BootstrapByDate {
	return &BootstrapByDate{rng: rand.New(src)}
}

// Method implements Resampler.
func (bs *BootstrapByDate) Method() domain.Method {
	return domain.MethodBootstrap
}

// Resample implements Resampler.
// Donor and target buckets must hold the same number of rows; otherwise
// ErrBucketShapeMismatch is returned and nothing is produced.
func (bs *BootstrapByDate) Resample(l *domain.Ledger) (*domain.Ledger, error) {
	b := l.Builder()
	buckets := l.Buckets()
	if len(buckets) == 0 {
		return b.Build(), nil
	}
	cols := l.DenominationColumns()

	for _, target := range buckets {
		donor := buckets[bs.rng.Intn(len(buckets))]
		if len(donor.Rows) != len(target.Rows) {
			return nil, fmt.Errorf("%w: donor %q has %d rows, target %q has %d",
				ErrBucketShapeMismatch, donor.Key, len(donor.Rows), target.Key, len(target.Rows))
		}
		for i, r := range target.Rows {
			for _, c := range cols {
				b.Set(r, c, l.Value(donor.Rows[i], c))
			}
		}
	}

	return b.Build(), nil
}
