// Package resample perturbs ledgers into plausible alternative realizations
// while keeping their bucket structure.
package resample

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"

	"provision-risk-lab/internal/domain"
)

// Resampler errors
var (
	ErrUnknownMethod       = errors.New("unknown resampling method")
	ErrMalformedColumn     = errors.New("malformed denomination column")
	ErrBucketShapeMismatch = errors.New("donor bucket row count differs from target bucket")
	ErrResampleFailed      = errors.New("resample failed")
)

// Resampler produces a new Ledger from an existing one. The input is never
// modified. Implementations are not safe for concurrent use; give each
// goroutine its own instance.
type Resampler interface {
	Method() domain.Method
	Resample(l *domain.Ledger) (*domain.Ledger, error)
}

// New returns the resampler for method, drawing randomness from src.
func New(method domain.Method, src rand.Source) (Resampler, error) {
	switch method {
	case domain.MethodMonteCarlo:
		return NewMonteCarloPoisson(src), nil
	case domain.MethodBootstrap:
		return NewBootstrapByDate(src), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// ResampleOrOriginal resamples l and falls back to l itself on any failure,
// including a panic inside the resampler. The error is returned so callers
// can tell a fallback from a genuine draw.
func ResampleOrOriginal(r Resampler, l *domain.Ledger) (out *domain.Ledger, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = l
			err = fmt.Errorf("%w: %v", ErrResampleFailed, p)
		}
	}()

	resampled, err := r.Resample(l)
	if err != nil {
		return l, err
	}
	return resampled, nil
}
