package simulation

import (
	"context"
	"time"

	"golang.org/x/exp/rand"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/provision"
	"provision-risk-lab/internal/resample"
)

// trajectoryStream separates the trajectory RNG from the Seed+worker
// streams Estimate uses.
const trajectoryStream uint64 = 0x9e3779b97f4a7c15

// Trajectories returns count simulated cumulative net-flow trajectories.
// Draws that fall back to the original ledger are kept as-is.
// Zero seed draws a seed from the clock.
func Trajectories(ctx context.Context, lending, recovery *domain.Ledger, method domain.Method, count int, seed uint64) ([][]float64, error) {
	if lending == nil || recovery == nil {
		return nil, ErrNilLedger
	}
	if count <= 0 {
		return [][]float64{}, nil
	}

	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	r, err := resample.New(method, rand.NewSource(seed^trajectoryStream))
	if err != nil {
		return nil, err
	}

	out := make([][]float64, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		l, _ := resample.ResampleOrOriginal(r, lending)
		rc, _ := resample.ResampleOrOriginal(r, recovery)
		out = append(out, provision.RealCumulative(l, rc))
	}
	return out, nil
}
