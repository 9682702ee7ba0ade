package filter

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Filter is a dynamical system filter.
type Filter interface {
	// Predict estimates the next internal state of the system
	Predict(u mat.Vector, dt float64) (Estimate, error)
	// Update updates the system state based on external measurement
	Update(u, z mat.Vector) (Estimate, error)
}

// Propagator propagates internal state of the system to the next step.
// The states are stored in the rows of x: every row must be propagated
// independently of every other row.
type Propagator interface {
	// Propagate propagates the states stored in the rows of x by dt given input u
	Propagate(x *mat.Dense, u mat.Vector, dt float64) (*mat.Dense, error)
}

// Observer observes external state (output) of the system.
// Like Propagator it must treat every row of x independently.
type Observer interface {
	// Observe observes external state of the system for every row of x
	Observe(x *mat.Dense, u mat.Vector) (*mat.Dense, error)
}

// Model is a model of a dynamical system
type Model interface {
	// Propagator is system propagator
	Propagator
	// Observer is system observer
	Observer
	// Dims returns state and output dimensions of the model
	Dims() (nx int, ny int)
}

// InitCond is initial state condition of the filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Estimate is dynamical system filter estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise drawn from src
	Sample(src rand.Source) mat.Vector
	// SampleN returns n i.i.d. samples drawn from src stored in matrix rows
	SampleN(n int, src rand.Source) *mat.Dense
}

// Likelihood is noise which can evaluate its own probability density
type Likelihood interface {
	// Noise is dynamical system noise
	Noise
	// Density evaluates noise density at every residual stored in the rows of e.
	// It stores the results in dst, allocating it if dst is nil, and returns it.
	Density(e mat.Matrix, dst []float64) []float64
}
