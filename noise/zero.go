package noise

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Zero is zero noise i.e. no noise
type Zero struct {
	// mean stores zero mean values
	mean []float64
	// cov is zero covariance matrix
	cov *mat.SymDense
}

// NewZero creates new zero noise i.e. zero mean and zero covariance.
// It returns error if size is non-positive.
func NewZero(size int) (*Zero, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid noise dimension: %d", size)
	}

	mean := make([]float64, size)
	cov := mat.NewSymDense(size, nil)

	return &Zero{
		mean: mean,
		cov:  cov,
	}, nil
}

// Sample generates empty sample and returns it: a vector with zero values.
// src is never read.
func (e *Zero) Sample(src rand.Source) mat.Vector {
	return mat.NewVecDense(len(e.mean), nil)
}

// SampleN returns n x size matrix of zeros.
func (e *Zero) SampleN(n int, src rand.Source) *mat.Dense {
	return mat.NewDense(n, len(e.mean), nil)
}

// Density is a Dirac delta: it is 1 for residual rows which are exactly zero and 0 otherwise.
func (e *Zero) Density(r mat.Matrix, dst []float64) []float64 {
	rows, cols := r.Dims()
	if dst == nil {
		dst = make([]float64, rows)
	}

	for i := 0; i < rows; i++ {
		dst[i] = 1
		for j := 0; j < cols; j++ {
			if r.At(i, j) != 0 {
				dst[i] = 0
				break
			}
		}
	}

	return dst
}

// Cov returns empty covariance matrix: symmetric matrix with zero values.
func (e *Zero) Cov() mat.Symmetric {
	cov := mat.NewSymDense(e.cov.SymmetricDim(), nil)
	cov.CopySym(e.cov)

	return cov
}

// Mean returns Zero mean.
func (e *Zero) Mean() []float64 {
	mean := make([]float64, len(e.mean))
	copy(mean, e.mean)

	return mean
}

// String implements the Stringer interface.
func (e *Zero) String() string {
	return fmt.Sprintf("Zero{\nMean=%v\nCov=%v\n}", e.Mean(), mat.Formatted(e.Cov(), mat.Prefix("    "), mat.Squeeze()))
}
