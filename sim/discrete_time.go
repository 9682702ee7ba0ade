package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Discrete is a basic model of a linear, discrete-time, dynamical system
type Discrete struct {
	System
}

// NewDiscrete creates a linear discrete-time model based on the control theory equations.
//
//	x[n+1] = A*x[n] + B*u[n] + E*z[n] (disturbances E not implemented yet)
//	y[n] = C*x[n] + D*u[n]
func NewDiscrete(A, B, C, D, E *mat.Dense) (*Discrete, error) {
	if A == nil {
		return nil, fmt.Errorf("system matrix must be defined for a model")
	}
	return &Discrete{System: newSystem(A, B, C, D, E)}, nil
}

// Propagate returns the next internal states of all the states stored in the rows of x
// given an input vector u. Discrete system is already sampled, so dt is ignored.
func (ds *Discrete) Propagate(x *mat.Dense, u mat.Vector, dt float64) (*mat.Dense, error) {
	if err := ds.checkDims(x, u); err != nil {
		return nil, err
	}

	return ds.stateDeriv(x, u), nil
}
