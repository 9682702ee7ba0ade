package sim

import (
	"fmt"
	"math"

	filter "github.com/milosgajdos/go-smc"
	"gonum.org/v1/gonum/mat"
)

// InitCond is the Gaussian initial condition particle ensembles are drawn from.
// It implements filter.InitCond.
type InitCond struct {
	state *mat.VecDense
	cov   *mat.SymDense
}

// NewInitCond creates new InitCond with mean state and covariance cov and returns it.
// It returns filter.ErrShapeMismatch if state is empty or if its length does not match the covariance,
// filter.ErrNonFiniteState if state contains NaN or Inf values and error if any variance is negative.
func NewInitCond(state mat.Vector, cov mat.Symmetric) (*InitCond, error) {
	if state == nil || cov == nil {
		return nil, fmt.Errorf("initial state and covariance must be defined")
	}

	n := state.Len()
	if n == 0 || n != cov.SymmetricDim() {
		return nil, fmt.Errorf("initial state %d, covariance %d: %w", n, cov.SymmetricDim(), filter.ErrShapeMismatch)
	}

	for i := 0; i < n; i++ {
		if v := state.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("initial state element %d is %f: %w", i, v, filter.ErrNonFiniteState)
		}
		if v := cov.At(i, i); v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("invalid initial variance %f at %d", v, i)
		}
	}

	s := &mat.VecDense{}
	s.CloneFromVec(state)

	c := mat.NewSymDense(n, nil)
	c.CopySym(cov)

	return &InitCond{
		state: s,
		cov:   c,
	}, nil
}

// State returns a copy of the initial state
func (c *InitCond) State() mat.Vector {
	state := mat.NewVecDense(c.state.Len(), nil)
	state.CloneFromVec(c.state)

	return state
}

// Cov returns a copy of the initial covariance
func (c *InitCond) Cov() mat.Symmetric {
	cov := mat.NewSymDense(c.cov.SymmetricDim(), nil)
	cov.CopySym(c.cov)

	return cov
}
