// Package simulation builds provision distributions by repeatedly resampling
// a lending/recovery ledger pair.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/provision"
	"provision-risk-lab/internal/resample"
)

// Runner errors
var (
	ErrUnknownMethod  = resample.ErrUnknownMethod
	ErrInvalidSamples = errors.New("number of samples must be positive")
	ErrInvalidAlpha   = errors.New("alpha must be in (0, 1)")
	ErrNilLedger      = errors.New("lending and recovery ledgers are required")
)

// Params configures one estimation run.
type Params struct {
	Method  domain.Method
	Samples int
	Alpha   float64

	// Workers defaults to GOMAXPROCS and never exceeds Samples.
	Workers int

	// Seed makes runs reproducible for a fixed Workers value.
	// Zero draws a seed from the clock.
	Seed uint64

	// Logger is optional.
	Logger logrus.FieldLogger

	// Progress, if set, is called after every finished iteration with the
	// number completed so far. It must be safe for concurrent use.
	Progress func(done int)
}

// Validate checks Params at the package boundary.
func (p Params) Validate() error {
	switch p.Method {
	case domain.MethodMonteCarlo, domain.MethodBootstrap:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, p.Method)
	}
	if p.Samples <= 0 {
		return ErrInvalidSamples
	}
	if !(p.Alpha > 0 && p.Alpha < 1) {
		return ErrInvalidAlpha
	}
	return nil
}

// Estimate returns the real provision followed by Samples simulated ones.
//
// Iteration i is always handled by worker i mod Workers, whose RNG is seeded
// with Seed+worker, so a given (Seed, Workers) pair reproduces the same
// distribution regardless of scheduling. A resampler failure never aborts the
// run: the original ledger is used for that draw and counted in Fallbacks.
// Cancelling ctx discards all partial work and returns ctx.Err().
func Estimate(ctx context.Context, lending, recovery *domain.Ledger, p Params) (*domain.ProvisionDistribution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if lending == nil || recovery == nil {
		return nil, ErrNilLedger
	}

	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	seed := p.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > p.Samples {
		workers = p.Samples
	}

	values := make([]float64, p.Samples+1)
	values[0] = provision.Calculate(lending, recovery).Provision

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		fallbacks int
		done      int
	)

	for w := 0; w < workers; w++ {
		r, err := resample.New(p.Method, rand.NewSource(seed+uint64(w)))
		if err != nil {
			return nil, err
		}

		wg.Add(1)
		go func(w int, r resample.Resampler) {
			defer wg.Done()
			for i := w; i < p.Samples; i += workers {
				if ctx.Err() != nil {
					return
				}

				l, lerr := resample.ResampleOrOriginal(r, lending)
				rc, rerr := resample.ResampleOrOriginal(r, recovery)
				values[i+1] = provision.Calculate(l, rc).Provision

				mu.Lock()
				if lerr != nil || rerr != nil {
					fallbacks++
					log.WithFields(logrus.Fields{
						"method":    p.Method,
						"iteration": i,
					}).WithError(errors.Join(lerr, rerr)).Debug("resample fell back to original ledger")
				}
				done++
				n := done
				mu.Unlock()

				if p.Progress != nil {
					p.Progress(n)
				}
			}
		}(w, r)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if fallbacks > 0 {
		log.WithFields(logrus.Fields{
			"method":    p.Method,
			"samples":   p.Samples,
			"fallbacks": fallbacks,
		}).Warn("some iterations used the original ledger")
	}

	return &domain.ProvisionDistribution{
		Method:    p.Method,
		Values:    values,
		Fallbacks: fallbacks,
	}, nil
}
