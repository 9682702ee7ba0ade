package resample

import (
	"github.com/milosgajdos/go-smc/rand"
	xrand "golang.org/x/exp/rand"
)

// Stratified is the stratified resampler: every output slot i draws its own
// ticket uniformly from the stratum [i/N, (i+1)/N).
type Stratified struct{}

// Resample computes the sample index map of w drawing one uniform value per slot from src.
func (Stratified) Resample(w []float64, src xrand.Source) ([]int, Stats, error) {
	c, err := Cumulative(w)
	if err != nil {
		return nil, Stats{}, err
	}

	n, m := len(w), len(c)
	idx := make([]int, n)
	var stats Stats
	k := 0
	for i := range idx {
		u := ticket(i, n, rand.UnitUniform(src))
		for k < m-1 && c[k] < u {
			k++
		}
		if c[k] < u {
			stats.Clamped++
		}
		idx[i] = k
	}

	return idx, stats, nil
}
