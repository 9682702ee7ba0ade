package sim

import (
	"fmt"

	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// Continuous is a basic model of a linear, continuous-time, dynamical system
type Continuous struct {
	System
}

// NewContinuous creates a linear continuous-time model based on the control theory equations
// which is advanced by timestep dt.
//
//	dx/dt = A*x + B*u + E*z (disturbances E not implemented yet)
//	y = C*x + D*u
func NewContinuous(A, B, C, D, E *mat.Dense) (*Continuous, error) {
	if A == nil {
		return nil, fmt.Errorf("system matrix must be defined for a model")
	}
	sys := newSystem(A, B, C, D, E)
	return &Continuous{System: sys}, nil
}

// ToDiscrete creates a discrete-time model from a continuous time model
// using Ts as the sampling time.
func (ct *Continuous) ToDiscrete(Ts float64) (*Discrete, error) {
	if Ts <= 0 {
		return nil, fmt.Errorf("invalid sampling time: %f", Ts)
	}

	nx, _, _, _ := ct.SystemDims()
	dsys := newSystem(ct.A, ct.B, ct.C, ct.D, ct.E)
	// continuous -> discrete time conversion
	// See Discrete-Time Control Systems by Katsuhiko Ogata
	// Eq. (5-73) p. 315  Second Edition (Spanish)
	dsys.A.Scale(Ts, dsys.A)
	dsys.A.Exp(dsys.A)

	if ct.B == nil {
		return &Discrete{dsys}, nil
	}

	// shorthand name for discrete B matrix
	Bd := dsys.B
	Aaux := mat.NewDense(nx, nx, nil)
	// Given A is not singular, the following is valid
	// Bd(Ts) = (exp(A*Ts) - I)*inv(A)*B  Eq. (5-74 bis) Ogata
	eye, err := matrix.NewDenseValIdentity(nx, 1.0)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity matrix: %v", err)
	}

	Aaux.Sub(dsys.A, eye)
	Ainv := mat.NewDense(nx, nx, nil)
	if err := Ainv.Inverse(ct.A); err == nil {
		Aaux.Mul(Aaux, Ainv)
		Bd.Mul(Aaux, ct.B)
		return &Discrete{dsys}, nil
	}

	Asum := Ainv
	Asum.Zero()
	// if A matrix is singular we integrate with closed form
	// from 0 to Ts
	// Bd = integrate( exp(A*t)dt, 0, Ts ) * B   Eq. (5-74) Ogata
	const n = 100
	dt := Ts / float64(n-1)
	for i := 0; i < n; i++ {
		Aaux.Scale(dt*float64(i), ct.A)
		Aaux.Exp(Aaux)
		Aaux.Scale(dt, Aaux)
		Asum.Add(Asum, Aaux)
	}
	Bd.Mul(Asum, ct.B)
	return &Discrete{dsys}, nil
}

// Propagate advances all the states stored in the rows of x by a timestep dt
// given an input vector u using explicit Euler integration of dx/dt = A*x + B*u.
func (ct *Continuous) Propagate(x *mat.Dense, u mat.Vector, dt float64) (*mat.Dense, error) {
	if err := ct.checkDims(x, u); err != nil {
		return nil, err
	}

	out := ct.stateDeriv(x, u)
	out.Scale(dt, out)
	out.Add(x, out)

	return out, nil
}
