// Package resample implements particle resampling schemes.
//
// Every scheme maps a vector of particle weights to a sample index map: a slice of N indices
// into the pre-resample particle set, one per post-resample particle slot. Gather then builds
// the new particle set from the index map.
package resample

import (
	"fmt"
	"math"

	filter "github.com/milosgajdos/go-smc"
	"github.com/milosgajdos/go-smc/parallel"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Stats are resampling statistics
type Stats struct {
	// Clamped counts the tickets whose index search ran past the end of the
	// cumulative weights and had to be clamped to the last particle.
	Clamped int
}

// Resampler computes sample index maps from particle weights
type Resampler interface {
	// Resample returns sample index map of len(w) indices into w drawn using src
	Resample(w []float64, src rand.Source) ([]int, Stats, error)
}

// Cumulative returns the cumulative sum of w normalized so that its last element is exactly 1.
// It returns error if w is empty and filter.ErrDegenerateWeights if any weight is negative
// or NaN or if the weights sum up to zero or to a non-finite value.
func Cumulative(w []float64) ([]float64, error) {
	if len(w) == 0 {
		return nil, fmt.Errorf("empty weights")
	}

	for i := range w {
		if w[i] < 0 || math.IsNaN(w[i]) {
			return nil, fmt.Errorf("weight %f at %d: %w", w[i], i, filter.ErrDegenerateWeights)
		}
	}

	c := make([]float64, len(w))
	floats.CumSum(c, w)

	total := c[len(c)-1]
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("weights sum up to %f: %w", total, filter.ErrDegenerateWeights)
	}

	floats.Scale(1/total, c)
	// rounding may leave the last element marginally off 1
	c[len(c)-1] = 1

	return c, nil
}

// ticket returns the ticket (i+r)/n of slot i out of n slots.
// Tickets are floored at the smallest positive float: zero weight particles at the front
// of c have c[k] == 0 and must never own a slot.
func ticket(i, n int, r float64) float64 {
	return math.Max((float64(i)+r)/float64(n), math.SmallestNonzeroFloat64)
}

// ESS returns effective sample size 1/sum(w_i^2) of the normalized weights w.
// It returns 0 if the weights sum up to zero or to a non-finite value.
func ESS(w []float64) float64 {
	total := floats.Sum(w)
	if !(total > 0) || math.IsInf(total, 0) {
		return 0
	}

	var sq float64
	for _, v := range w {
		v /= total
		sq += v * v
	}

	return 1 / sq
}

// Gather returns a new matrix whose i-th row is a copy of the row idx[i] of x.
// The rows are copied by up to workers goroutines. x is only read, so the gather
// may run concurrently with other readers of x but the caller must not modify x until Gather returns.
// It returns error if any index is out of range of x rows.
func Gather(x mat.Matrix, idx []int, workers int) (*mat.Dense, error) {
	rows, cols := x.Dims()
	for i, k := range idx {
		if k < 0 || k >= rows {
			return nil, fmt.Errorf("index %d at slot %d out of range [0, %d): %w", k, i, rows, filter.ErrShapeMismatch)
		}
	}

	out := mat.NewDense(len(idx), cols, nil)
	err := parallel.Blocks(len(idx), workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			mat.Row(out.RawRowView(i), idx[i], x)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// New returns a Resampler given its name:
// "systematic", "parallel", "stratified" or "multinomial".
// workers is only used by the "parallel" resampler.
func New(name string, workers int) (Resampler, error) {
	switch name {
	case "", "systematic":
		return Systematic{}, nil
	case "parallel":
		return Parallel{Workers: workers}, nil
	case "stratified":
		return Stratified{}, nil
	case "multinomial":
		return Multinomial{}, nil
	default:
		return nil, fmt.Errorf("unknown resampler: %q", name)
	}
}
