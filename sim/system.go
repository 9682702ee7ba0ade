package sim

import (
	"fmt"

	filter "github.com/milosgajdos/go-smc"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// System defines a linear model of a plant using
// traditional matrices of modern control theory.
//
// It contains the System (A), input (B), Observation/Output (C)
// Feedthrough (D) and disturbance (E) matrices.
type System struct {
	// System/State matrix A
	A *mat.Dense
	// Control/Input Matrix B
	B *mat.Dense
	// Observation/Output Matrix C
	C *mat.Dense
	// Feedthrough matrix D
	D *mat.Dense
	// Perturbation matrix (related to process noise wd) E
	E *mat.Dense
}

func newSystem(A, B, C, D, E mat.Matrix) System {
	sys := System{A: mat.DenseCopyOf(A)}
	if B != nil && B.(*mat.Dense) != nil {
		sys.B = mat.DenseCopyOf(B)
	}
	if C != nil && C.(*mat.Dense) != nil {
		sys.C = mat.DenseCopyOf(C)
	}
	if D != nil && D.(*mat.Dense) != nil {
		sys.D = mat.DenseCopyOf(D)
	}
	if E != nil && E.(*mat.Dense) != nil {
		sys.E = mat.DenseCopyOf(E)
	}
	return sys
}

// SystemDims returns internal state length (nx), input vector length (nu),
// external/observable/output state length (ny) and disturbance vector length (nz).
func (s System) SystemDims() (nx, nu, ny, nz int) {
	nx, _ = s.A.Dims()
	if s.B != nil {
		_, nu = s.B.Dims()
	}
	if s.C != nil {
		ny, _ = s.C.Dims()
	}
	if s.E != nil {
		_, nz = s.E.Dims()
	}
	return nx, nu, ny, nz
}

// Dims returns state and output dimensions.
func (s System) Dims() (nx, ny int) {
	nx, _, ny, _ = s.SystemDims()
	return nx, ny
}

// SystemMatrix returns state propagation matrix `A`.
func (s System) SystemMatrix() (A mat.Matrix) { return s.A }

// ControlMatrix returns state propagation control matrix `B`
func (s System) ControlMatrix() (B mat.Matrix) {
	if s.B == nil {
		return nil
	}
	return s.B
}

// OutputMatrix returns observation matrix `C`
func (s System) OutputMatrix() (C mat.Matrix) {
	if s.C == nil {
		return nil
	}
	return s.C
}

// FeedForwardMatrix returns observation control matrix `D`
func (s System) FeedForwardMatrix() (D mat.Matrix) {
	if s.D == nil {
		return nil
	}
	return s.D
}

// Observe returns external/observable states of all the states stored in the rows of x given input u.
//
//	Y = X*C' + 1*(D*u)'
func (s System) Observe(x *mat.Dense, u mat.Vector) (*mat.Dense, error) {
	if s.C == nil {
		return nil, fmt.Errorf("output matrix must be defined to observe system")
	}

	if err := s.checkDims(x, u); err != nil {
		return nil, err
	}

	out := new(mat.Dense)
	out.Mul(x, s.C.T())

	if u != nil && s.D != nil {
		addRowVec(out, s.D, u)
	}

	return out, nil
}

// stateDeriv computes X*A' + 1*(B*u)'
func (s System) stateDeriv(x *mat.Dense, u mat.Vector) *mat.Dense {
	out := new(mat.Dense)
	out.Mul(x, s.A.T())

	if u != nil && s.B != nil {
		addRowVec(out, s.B, u)
	}

	return out
}

func (s System) checkDims(x *mat.Dense, u mat.Vector) error {
	nx, nu, _, _ := s.SystemDims()
	if u != nil && u.Len() != nu {
		return fmt.Errorf("invalid input vector length %d: %w", u.Len(), filter.ErrShapeMismatch)
	}

	if _, c := x.Dims(); c != nx {
		return fmt.Errorf("invalid state dimension %d: %w", c, filter.ErrShapeMismatch)
	}

	return nil
}

// addRowVec adds (m*v)' to every row of out
func addRowVec(out *mat.Dense, m *mat.Dense, v mat.Vector) {
	mv := new(mat.VecDense)
	mv.MulVec(m, v)
	data := mat.Col(nil, 0, mv)

	rows, _ := out.Dims()
	for r := 0; r < rows; r++ {
		floats.Add(out.RawRowView(r), data)
	}
}
