package noise

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is gaussian noise
type Gaussian struct {
	// dist is a multivariate normal distribution used to evaluate densities
	dist *distmv.Normal
	// mean is Gaussian mean
	mean []float64
	// cov is Gaussian covariance
	cov *mat.SymDense
}

// NewGaussian creates new Gaussian noise with given mean and covariance.
// It returns error if the covariance is not positive definite or if its size does not match mean.
func NewGaussian(mean []float64, cov mat.Symmetric) (*Gaussian, error) {
	if cov.SymmetricDim() != len(mean) {
		return nil, fmt.Errorf("invalid Gaussian dimensions: mean %d, cov %d", len(mean), cov.SymmetricDim())
	}

	m := make([]float64, len(mean))
	copy(m, mean)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	dist, ok := distmv.NewNormal(m, c, nil)
	if !ok {
		return nil, fmt.Errorf("failed to create new Gaussian noise")
	}

	return &Gaussian{
		dist: dist,
		mean: m,
		cov:  c,
	}, nil
}

// Sample generates a sample from Gaussian noise using src and returns it.
func (g *Gaussian) Sample(src rand.Source) mat.Vector {
	s := g.SampleN(1, src)

	return mat.NewVecDense(len(g.mean), s.RawRowView(0))
}

// SampleN generates n samples from Gaussian noise using src.
// The samples are stored in the rows of the returned matrix.
func (g *Gaussian) SampleN(n int, src rand.Source) *mat.Dense {
	// the covariance has already been validated in NewGaussian
	dist, _ := distmv.NewNormal(g.mean, g.cov, src)

	samples := mat.NewDense(n, len(g.mean), nil)
	for i := 0; i < n; i++ {
		dist.Rand(samples.RawRowView(i))
	}

	return samples
}

// Density evaluates Gaussian probability density at every row of e.
// It panics if the number of columns of e does not match the noise dimension.
func (g *Gaussian) Density(e mat.Matrix, dst []float64) []float64 {
	rows, cols := e.Dims()
	if cols != len(g.mean) {
		panic(fmt.Sprintf("noise: invalid residual dimension: %d", cols))
	}

	if dst == nil {
		dst = make([]float64, rows)
	}

	row := make([]float64, cols)
	for r := 0; r < rows; r++ {
		mat.Row(row, r, e)
		dst[r] = math.Exp(g.dist.LogProb(row))
	}

	return dst
}

// Cov returns covariance matrix of Gaussian noise.
func (g *Gaussian) Cov() mat.Symmetric {
	cov := mat.NewSymDense(g.cov.SymmetricDim(), nil)
	cov.CopySym(g.cov)

	return cov
}

// Mean returns Gaussian mean.
func (g *Gaussian) Mean() []float64 {
	mean := make([]float64, len(g.mean))
	copy(mean, g.mean)

	return mean
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}", g.mean, mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
