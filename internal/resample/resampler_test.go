package resample

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"provision-risk-lab/internal/domain"
)

func buildLedger(t *testing.T, labels []string, rows []domain.LedgerRow) *domain.Ledger {
	t.Helper()
	l, err := domain.NewLedger(labels, rows)
	require.NoError(t, err)
	return l
}

func intervalLedger(t *testing.T) *domain.Ledger {
	return buildLedger(t, []string{"ref_date", "INTERVAL", "100", "200"}, []domain.LedgerRow{
		{Bucket: "2024-01-01", Interval: 1, HasInterval: true, Cells: []float64{0, 1, 4, 1}},
		{Bucket: "2024-01-01", Interval: 2, HasInterval: true, Cells: []float64{0, 2, 6, 0}},
		{Bucket: "2024-01-02", Interval: 1, HasInterval: true, Cells: []float64{0, 1, 0, 3}},
		{Bucket: "2024-01-02", Interval: 2, HasInterval: true, Cells: []float64{0, 2, 1, 5}},
		{Bucket: "2024-01-03", Interval: 1, HasInterval: true, Cells: []float64{0, 1, 9, 9}},
		{Bucket: "2024-01-03", Interval: 2, HasInterval: true, Cells: []float64{0, 2, 2, 2}},
	})
}

func snapshot(l *domain.Ledger) [][]float64 {
	out := make([][]float64, l.Len())
	for r := range out {
		out[r] = make([]float64, len(l.Columns()))
		for c := range out[r] {
			out[r][c] = l.Value(r, c)
		}
	}
	return out
}

func TestNew(t *testing.T) {
	src := rand.NewSource(1)

	r, err := New(domain.MethodMonteCarlo, src)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodMonteCarlo, r.Method())

	r, err = New(domain.MethodBootstrap, src)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodBootstrap, r.Method())

	_, err = New(domain.Method("jackknife"), src)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestPoisson_PreservesStructure(t *testing.T) {
	l := intervalLedger(t)
	before := snapshot(l)

	out, err := NewMonteCarloPoisson(rand.NewSource(7)).Resample(l)
	require.NoError(t, err)

	require.Equal(t, l.Len(), out.Len())
	assert.Equal(t, l.Columns(), out.Columns())
	for r := 0; r < l.Len(); r++ {
		assert.Equal(t, l.Key(r), out.Key(r))
		liv, _ := l.Interval(r)
		oiv, _ := out.Interval(r)
		assert.Equal(t, liv, oiv)
		// metadata columns are untouched
		assert.Equal(t, l.Value(r, 0), out.Value(r, 0))
		assert.Equal(t, l.Value(r, 1), out.Value(r, 1))
		for _, c := range out.DenominationColumns() {
			v := out.Value(r, c)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Equal(t, math.Trunc(v), v)
		}
	}
	assert.Equal(t, before, snapshot(l), "input ledger must not change")
}

func TestPoisson_ZeroMeanYieldsZeros(t *testing.T) {
	l := buildLedger(t, []string{"50", "100"}, []domain.LedgerRow{
		{Bucket: "a", Cells: []float64{0, 3}},
		{Bucket: "a", Cells: []float64{0, 5}},
		{Bucket: "b", Cells: []float64{0, 0}},
	})

	for seed := uint64(0); seed < 20; seed++ {
		out, err := NewMonteCarloPoisson(rand.NewSource(seed)).Resample(l)
		require.NoError(t, err)
		for r := 0; r < out.Len(); r++ {
			assert.Zero(t, out.Value(r, 0))
		}
		assert.Zero(t, out.Value(2, 1))
	}
}

func TestPoisson_MeanIsPreservedOnAverage(t *testing.T) {
	l := buildLedger(t, []string{"1"}, []domain.LedgerRow{
		{Bucket: "a", Cells: []float64{2}},
		{Bucket: "a", Cells: []float64{6}},
	})

	p := NewMonteCarloPoisson(rand.NewSource(11))
	const draws = 4000
	sum := 0.0
	for i := 0; i < draws; i++ {
		out, err := p.Resample(l)
		require.NoError(t, err)
		sum += out.Value(0, 0) + out.Value(1, 0)
	}
	assert.InDelta(t, 4.0, sum/(2*draws), 0.15)
}

func TestPoisson_MissingCellZeroesOnlyItsGroup(t *testing.T) {
	l := buildLedger(t, []string{"ref_date", "100", "200"}, []domain.LedgerRow{
		{Bucket: "d1", Cells: []float64{0, 50, math.NaN()}},
		{Bucket: "d1", Cells: []float64{0, 50, 40}},
		{Bucket: "d2", Cells: []float64{0, 50, 40}},
		{Bucket: "d2", Cells: []float64{0, 50, 40}},
	})
	before := snapshot(l)
	p := NewMonteCarloPoisson(rand.NewSource(7))

	perturbed := false
	for i := 0; i < 20; i++ {
		out, err := p.Resample(l)
		require.NoError(t, err)

		assert.Equal(t, 0.0, out.Value(0, 2))
		assert.Equal(t, 0.0, out.Value(1, 2))

		for r := 0; r < out.Len(); r++ {
			if out.Value(r, 1) != 50 {
				perturbed = true
			}
		}
		if out.Value(2, 2) != 40 || out.Value(3, 2) != 40 {
			perturbed = true
		}
	}
	assert.True(t, perturbed, "groups without missing cells must still be drawn")
	assert.Equal(t, before, snapshot(l))

	out, err := ResampleOrOriginal(p, l)
	require.NoError(t, err)
	assert.NotSame(t, l, out)
}

func TestPoisson_InfiniteMean(t *testing.T) {
	l := buildLedger(t, []string{"10"}, []domain.LedgerRow{
		{Bucket: "a", Cells: []float64{1}},
		{Bucket: "a", Cells: []float64{math.Inf(1)}},
	})

	_, err := NewMonteCarloPoisson(rand.NewSource(1)).Resample(l)
	assert.ErrorIs(t, err, ErrMalformedColumn)
}

func TestBootstrap_RowsComeFromOneDonorBucket(t *testing.T) {
	l := intervalLedger(t)
	before := snapshot(l)
	cols := l.DenominationColumns()
	buckets := l.Buckets()

	bs := NewBootstrapByDate(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		out, err := bs.Resample(l)
		require.NoError(t, err)

		for _, target := range out.Buckets() {
			matched := false
			for _, donor := range buckets {
				same := true
				for k, r := range target.Rows {
					for _, c := range cols {
						if out.Value(r, c) != l.Value(donor.Rows[k], c) {
							same = false
						}
					}
				}
				if same {
					matched = true
					break
				}
			}
			assert.True(t, matched, "bucket %s is not a copy of any source bucket", target.Key)
			assert.Equal(t, l.Value(target.Rows[0], 1), out.Value(target.Rows[0], 1))
		}
	}
	assert.Equal(t, before, snapshot(l))
}

func TestBootstrap_ShapeMismatch(t *testing.T) {
	l := buildLedger(t, []string{"10"}, []domain.LedgerRow{
		{Bucket: "a", Cells: []float64{1}},
		{Bucket: "a", Cells: []float64{2}},
		{Bucket: "b", Cells: []float64{3}},
	})

	bs := NewBootstrapByDate(rand.NewSource(5))
	var sawMismatch bool
	for i := 0; i < 50 && !sawMismatch; i++ {
		_, err := bs.Resample(l)
		if err != nil {
			require.ErrorIs(t, err, ErrBucketShapeMismatch)
			sawMismatch = true
		}
	}
	assert.True(t, sawMismatch)
}

func TestBootstrap_EmptyLedger(t *testing.T) {
	l := buildLedger(t, []string{"10"}, nil)

	out, err := NewBootstrapByDate(rand.NewSource(1)).Resample(l)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
}

type failingResampler struct{ panics bool }

func (f failingResampler) Method() domain.Method { return domain.MethodBootstrap }

func (f failingResampler) Resample(*domain.Ledger) (*domain.Ledger, error) {
	if f.panics {
		panic("boom")
	}
	return nil, errors.New("broken")
}

func TestResampleOrOriginal(t *testing.T) {
	l := intervalLedger(t)

	out, err := ResampleOrOriginal(failingResampler{}, l)
	assert.Error(t, err)
	assert.Same(t, l, out)

	out, err = ResampleOrOriginal(failingResampler{panics: true}, l)
	assert.ErrorIs(t, err, ErrResampleFailed)
	assert.Same(t, l, out)

	out, err = ResampleOrOriginal(NewBootstrapByDate(rand.NewSource(2)), l)
	require.NoError(t, err)
	assert.NotSame(t, l, out)
}
