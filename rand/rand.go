package rand

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NewSource returns a new random source seeded with seed.
// If seed is 0 the source is seeded with the current time.
func NewSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return rand.NewSource(seed)
}

// UnitUniform draws a single value from the Uniform distribution on [0,1) using src.
func UnitUniform(src rand.Source) float64 {
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	for {
		// distuv.Uniform may return Max due to rounding
		if v := u.Rand(); v < 1 {
			return v
		}
	}
}

// WithCovN draws n random samples from a zero-mean Normal (aka Gaussian) distribution with covariance cov.
// It returns matrix which contains the randomly generated samples stored in its rows.
// It fails with error if n is non-positive or if SVD factorization of cov fails.
func WithCovN(cov mat.Symmetric, n int, src rand.Source) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples requested: %d", n)
	}

	// Use SVD instead of Cholesky as Cholesky can be numerically unstable if cov is (almost) singular
	var svd mat.SVD
	ok := svd.Factorize(cov, mat.SVDFull)
	if !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	U := new(mat.Dense)
	svd.UTo(U)
	vals := svd.Values(nil)
	for i := range vals {
		vals[i] = math.Sqrt(vals[i])
	}
	diag := mat.NewDiagDense(len(vals), vals)
	U.Mul(U, diag)

	rnd := rand.New(src)
	size := cov.SymmetricDim()
	data := make([]float64, n*size)
	for i := range data {
		data[i] = rnd.NormFloat64()
	}
	samples := mat.NewDense(n, size, data)
	samples.Mul(samples, U.T())

	return samples, nil
}

// RouletteDrawN draws n numbers randomly from a probability mass function (PMF) defined by weights in p.
// RouletteDrawN implements the Roulette Wheel Draw a.k.a. Fitness Proportionate Selection:
// - https://en.wikipedia.org/wiki/Fitness_proportionate_selection
// - http://www.keithschwarz.com/darts-dice-coins/
// It returns a slice of n indices into the vector p.
// It fails with error if p is empty or nil or if its weights sum up to zero.
func RouletteDrawN(p []float64, n int, src rand.Source) ([]int, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("invalid probability weights: %v", p)
	}

	// Initialization: create the discrete CDF
	// We know that cdf is sorted in ascending order
	cdf := make([]float64, len(p))
	floats.CumSum(cdf, p)

	total := cdf[len(cdf)-1]
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, fmt.Errorf("invalid probability weights sum: %f", total)
	}

	// Generation:
	// 1. Generate a uniformly-random value x in the range [0,1)
	// 2. Using a binary search, find the index of the smallest element in cdf larger than x
	indices := make([]int, n)
	for i := range indices {
		// multiply the sample with the largest CDF value; easier than normalizing to [0,1)
		val := UnitUniform(src) * total
		// Search returns the smallest index i such that cdf[i] > val
		idx := sort.Search(len(cdf), func(i int) bool { return cdf[i] > val })
		if idx == len(cdf) {
			idx = len(cdf) - 1
		}
		indices[i] = idx
	}

	return indices, nil
}
