package sim

import (
	"fmt"

	filter "github.com/milosgajdos/go-smc"
	"github.com/milosgajdos/go-smc/parallel"
	"gonum.org/v1/gonum/mat"
)

// StateFunc computes the next state of a single state x given input u and timestep dt.
// It must store the result in dst and must not retain any of its arguments.
type StateFunc func(dst, x, u []float64, dt float64)

// OutputFunc computes the output of a single state x given input u and stores it in dst.
type OutputFunc func(dst, x, u []float64)

// Func is a (possibly nonlinear) model of a dynamical system defined by per-state functions.
// Func applies its functions to every row of a state batch independently which makes it
// safe to process the batch rows concurrently.
type Func struct {
	// F is state transition function
	F StateFunc
	// G is observation function
	G OutputFunc
	// nx is state dimension
	nx int
	// ny is output dimension
	ny int
	// workers is the number of goroutines used to process state batches
	workers int
}

// NewFunc creates new Func model with state dimension nx and output dimension ny.
// Batches are processed by up to workers goroutines; workers <= 1 processes them sequentially.
func NewFunc(f StateFunc, g OutputFunc, nx, ny, workers int) (*Func, error) {
	if f == nil || g == nil {
		return nil, fmt.Errorf("both state and output functions must be defined")
	}

	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid model dimensions: [%d x %d]", nx, ny)
	}

	if workers < 1 {
		workers = 1
	}

	return &Func{
		F:       f,
		G:       g,
		nx:      nx,
		ny:      ny,
		workers: workers,
	}, nil
}

// Propagate applies F to every row of x.
func (fn *Func) Propagate(x *mat.Dense, u mat.Vector, dt float64) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != fn.nx {
		return nil, fmt.Errorf("invalid state dimension %d: %w", cols, filter.ErrShapeMismatch)
	}

	in := vecData(u)
	out := mat.NewDense(rows, fn.nx, nil)
	err := parallel.Blocks(rows, fn.workers, func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			fn.F(out.RawRowView(r), x.RawRowView(r), in, dt)
		}
		return nil
	})

	return out, err
}

// Observe applies G to every row of x.
func (fn *Func) Observe(x *mat.Dense, u mat.Vector) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if cols != fn.nx {
		return nil, fmt.Errorf("invalid state dimension %d: %w", cols, filter.ErrShapeMismatch)
	}

	in := vecData(u)
	out := mat.NewDense(rows, fn.ny, nil)
	err := parallel.Blocks(rows, fn.workers, func(lo, hi int) error {
		for r := lo; r < hi; r++ {
			fn.G(out.RawRowView(r), x.RawRowView(r), in)
		}
		return nil
	})

	return out, err
}

// Dims returns state and output dimensions.
func (fn *Func) Dims() (nx, ny int) {
	return fn.nx, fn.ny
}

func vecData(v mat.Vector) []float64 {
	if v == nil {
		return nil
	}

	data := make([]float64, v.Len())
	for i := range data {
		data[i] = v.AtVec(i)
	}

	return data
}
