package resample

import (
	"sync/atomic"

	"github.com/milosgajdos/go-smc/parallel"
	"github.com/milosgajdos/go-smc/rand"
	xrand "golang.org/x/exp/rand"
)

// Parallel is the data-parallel systematic resampler.
// For the same offset it produces exactly the same index map as Systematic.
type Parallel struct {
	// Workers is the number of goroutines searching the tickets.
	// Non-positive value uses GOMAXPROCS goroutines.
	Workers int
}

// Resample computes the sample index map of w using a single uniform offset drawn from src.
// The offset is drawn before any search starts and is shared by all the searches.
func (p Parallel) Resample(w []float64, src xrand.Source) ([]int, Stats, error) {
	c, err := Cumulative(w)
	if err != nil {
		return nil, Stats{}, err
	}

	idx := make([]int, len(w))
	clamped, err := ParallelIndex(c, rand.UnitUniform(src), idx, p.Workers)
	if err != nil {
		return nil, Stats{}, err
	}

	return idx, Stats{Clamped: clamped}, nil
}

// ParallelIndex fills idx with the systematic sample index map of the cumulative weights c
// given the offset r in [0,1), searching every ticket independently of all the others.
// Slots are split into contiguous blocks searched by up to workers goroutines; the only data
// shared between them are r and c, both read-only. Each slot is written by exactly one goroutine.
// ParallelIndex returns after all the searches have finished, along with the number of clamped tickets.
func ParallelIndex(c []float64, r float64, idx []int, workers int) (int, error) {
	if len(idx) == 0 || len(c) == 0 {
		return 0, nil
	}

	var clamped atomic.Int64
	err := parallel.Blocks(len(idx), workers, func(lo, hi int) error {
		var n int64
		for i := lo; i < hi; i++ {
			k, ok := searchTicket(c, r, i, len(idx))
			if !ok {
				n++
			}
			idx[i] = k
		}
		clamped.Add(n)
		return nil
	})

	return int(clamped.Load()), err
}

// searchTicket returns the index of the particle owning the ticket of slot i out of n slots.
// It returns false if the ticket exceeds c[len(c)-1] and the index was clamped.
func searchTicket(c []float64, r float64, i, n int) (int, bool) {
	m := len(c)
	u := ticket(i, n, r)

	// coarse start assuming uniformly spread weights
	k := i * m / n
	if k > m-1 {
		k = m - 1
	}

	// forward: first k at or after the start covering the ticket
	for k < m-1 && c[k] < u {
		k++
	}
	if c[k] < u {
		return m - 1, false
	}

	// backward: the start may have overshot the crossing point;
	// walk down to the last index which does not cover the ticket
	for k >= 0 && c[k] >= u {
		k--
	}

	return k + 1, true
}
