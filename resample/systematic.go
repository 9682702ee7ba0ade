package resample

import (
	"github.com/milosgajdos/go-smc/rand"
	xrand "golang.org/x/exp/rand"
)

// Systematic is the serial systematic resampler.
// It consumes exactly one uniform draw per call.
type Systematic struct{}

// Resample computes the sample index map of w using a single uniform offset drawn from src.
func (Systematic) Resample(w []float64, src xrand.Source) ([]int, Stats, error) {
	c, err := Cumulative(w)
	if err != nil {
		return nil, Stats{}, err
	}

	idx := make([]int, len(w))
	clamped := SystematicIndex(c, rand.UnitUniform(src), idx)

	return idx, Stats{Clamped: clamped}, nil
}

// SystematicIndex fills idx with the systematic sample index map of the cumulative weights c
// given the offset r in [0,1): slot i is owned by the smallest k such that c[k] >= (i+r)/len(idx)
// and c[k] > 0.
// The tickets are evenly spaced and increasing so a single cursor walks c once.
// The cursor never leaves [0, len(c)-1]; SystematicIndex returns the number of tickets that
// exceeded c[len(c)-1] and were clamped to the last index.
func SystematicIndex(c []float64, r float64, idx []int) int {
	n, m := len(idx), len(c)
	if n == 0 || m == 0 {
		return 0
	}

	clamped := 0
	k := 0
	for i := 0; i < n; i++ {
		u := ticket(i, n, r)
		for k < m-1 && c[k] < u {
			k++
		}
		if c[k] < u {
			clamped++
		}
		idx[i] = k
	}

	return clamped
}
