package particle

import (
	"fmt"
	"math"

	filter "github.com/milosgajdos/go-smc"
	"github.com/milosgajdos/go-smc/estimate"
	"github.com/milosgajdos/go-smc/rand"
	"github.com/milosgajdos/go-smc/resample"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Ensemble is a set of weighted particles.
// Particles are stored in the rows of a matrix; weights are aligned with the rows by index.
// The number of particles is fixed for the lifetime of the Ensemble.
// Ensemble is not safe for concurrent use.
type Ensemble struct {
	// x stores particles as row vectors
	x *mat.Dense
	// w stores particle weights
	w []float64
}

// NewEnsemble creates new Ensemble from a copy of particles stored in the rows of x.
// All particle weights are set to the same value: 1/N.
func NewEnsemble(x mat.Matrix) (*Ensemble, error) {
	if x == nil {
		return nil, fmt.Errorf("invalid particles: %w", filter.ErrShapeMismatch)
	}

	n, _ := x.Dims()
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}

	return NewEnsembleWithWeights(x, w)
}

// NewEnsembleWithWeights creates new Ensemble from copies of particles x and their weights w.
// It returns error if the number of weights differs from the number of particles or if any weight is negative.
func NewEnsembleWithWeights(x mat.Matrix, w []float64) (*Ensemble, error) {
	if x == nil {
		return nil, fmt.Errorf("invalid particles: %w", filter.ErrShapeMismatch)
	}

	n, _ := x.Dims()
	if len(w) != n {
		return nil, fmt.Errorf("weight count %d, particle count %d: %w", len(w), n, filter.ErrShapeMismatch)
	}

	for i := range w {
		if w[i] < 0 || math.IsNaN(w[i]) {
			return nil, fmt.Errorf("invalid weight %f at %d", w[i], i)
		}
	}

	weights := make([]float64, n)
	copy(weights, w)

	return &Ensemble{
		x: mat.DenseCopyOf(x),
		w: weights,
	}, nil
}

// Draw draws n particles from a Gaussian distribution given by the initial condition ic using src.
// It returns error if n is non-positive or if the particles fail to be generated.
func Draw(ic filter.InitCond, n int, src xrand.Source) (*Ensemble, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid particle count: %d", n)
	}

	state := ic.State()
	if state.Len() != ic.Cov().SymmetricDim() {
		return nil, fmt.Errorf("initial state %d, covariance %d: %w", state.Len(), ic.Cov().SymmetricDim(), filter.ErrShapeMismatch)
	}

	// draw particles from distribution with covariance InitCond.Cov()
	x, err := rand.WithCovN(ic.Cov(), n, src)
	if err != nil {
		return nil, fmt.Errorf("failed to generate particles: %v", err)
	}

	// center particles around initial state condition ic.State()
	center := mat.Col(nil, 0, state)
	for r := 0; r < n; r++ {
		floats.Add(x.RawRowView(r), center)
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}

	return &Ensemble{
		x: x,
		w: w,
	}, nil
}

// Len returns the number of particles.
func (e *Ensemble) Len() int {
	return len(e.w)
}

// Dim returns particle dimension.
func (e *Ensemble) Dim() int {
	_, c := e.x.Dims()
	return c
}

// Particles returns a copy of the ensemble particles.
func (e *Ensemble) Particles() *mat.Dense {
	return mat.DenseCopyOf(e.x)
}

// Weights returns a copy of the ensemble weights.
func (e *Ensemble) Weights() []float64 {
	w := make([]float64, len(e.w))
	copy(w, e.w)

	return w
}

// RawParticles returns the particle matrix backing the ensemble.
// The returned matrix must be treated as read-only and must not be retained:
// resampling replaces it.
func (e *Ensemble) RawParticles() *mat.Dense {
	return e.x
}

// RawWeights returns the weights backing the ensemble.
// Like RawParticles the returned slice must not be retained.
func (e *Ensemble) RawWeights() []float64 {
	return e.w
}

// SetParticles replaces the ensemble particles with x, keeping the weights intact.
// The ensemble takes ownership of x. It returns error if x has different dimensions.
// It returns filter.ErrNonFiniteState if x contains NaN or Inf values: x is stored anyway.
func (e *Ensemble) SetParticles(x *mat.Dense) error {
	r, c := x.Dims()
	if r != e.Len() || c != e.Dim() {
		return fmt.Errorf("particles [%d x %d], expected [%d x %d]: %w", r, c, e.Len(), e.Dim(), filter.ErrShapeMismatch)
	}

	e.x = x

	return e.CheckFinite()
}

// Replace replaces the ensemble particles with x and resets all the weights to 1/N.
// The ensemble takes ownership of x.
func (e *Ensemble) Replace(x *mat.Dense) error {
	r, c := x.Dims()
	if r != e.Len() || c != e.Dim() {
		return fmt.Errorf("particles [%d x %d], expected [%d x %d]: %w", r, c, e.Len(), e.Dim(), filter.ErrShapeMismatch)
	}

	e.x = x
	e.ResetWeights()

	return nil
}

// Reweight multiplies every particle weight by its likelihood l.
// The weights are not normalized.
// It returns filter.ErrDegenerateWeights if the resulting weights sum up to zero or to a non-finite value.
func (e *Ensemble) Reweight(l []float64) error {
	if len(l) != len(e.w) {
		return fmt.Errorf("likelihood count %d, particle count %d: %w", len(l), len(e.w), filter.ErrShapeMismatch)
	}

	floats.Mul(e.w, l)

	return e.checkTotal()
}

// Normalize scales the weights so that they sum up to 1.
// It returns filter.ErrDegenerateWeights if the weights sum up to zero or to a non-finite value
// in which case the weights are left untouched.
func (e *Ensemble) Normalize() error {
	if err := e.checkTotal(); err != nil {
		return err
	}

	floats.Scale(1/floats.Sum(e.w), e.w)

	return nil
}

// ResetWeights sets all the weights to 1/N.
func (e *Ensemble) ResetWeights() {
	for i := range e.w {
		e.w[i] = 1 / float64(len(e.w))
	}
}

// ESS returns effective sample size of the ensemble.
// It returns 0 if the weights are degenerate.
func (e *Ensemble) ESS() float64 {
	return resample.ESS(e.w)
}

// CheckFinite returns filter.ErrNonFiniteState if any particle contains NaN or Inf values.
func (e *Ensemble) CheckFinite() error {
	for r := 0; r < e.Len(); r++ {
		for _, v := range e.x.RawRowView(r) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("particle %d: %w", r, filter.ErrNonFiniteState)
			}
		}
	}

	return nil
}

// Estimate returns the weighted mean of the particles with their weighted covariance.
// The weights are normalized on a copy, the ensemble is not modified.
// A single particle is its own estimate with zero covariance.
// It returns filter.ErrDegenerateWeights if the weights can not be normalized.
func (e *Ensemble) Estimate() (*estimate.Base, error) {
	if err := e.checkTotal(); err != nil {
		return nil, err
	}

	if e.Len() == 1 {
		return estimate.NewBase(e.x.RowView(0))
	}

	w := e.Weights()
	floats.Scale(1/floats.Sum(w), w)

	// mean = X' * w
	mean := mat.NewVecDense(e.Dim(), nil)
	mean.MulVec(e.x.T(), mat.NewVecDense(len(w), w))

	// cov = sum w_i * (x_i - mean) * (x_i - mean)'
	cov := mat.NewSymDense(e.Dim(), nil)
	diff := mat.NewVecDense(e.Dim(), nil)
	for r := range w {
		if w[r] == 0 {
			continue
		}
		diff.SubVec(e.x.RowView(r), mean)
		cov.SymRankOne(cov, w[r], diff)
	}

	return estimate.NewBaseWithCov(mean, cov)
}

func (e *Ensemble) checkTotal() error {
	total := floats.Sum(e.w)
	if !(total > 0) || math.IsInf(total, 0) {
		return fmt.Errorf("weights sum up to %f: %w", total, filter.ErrDegenerateWeights)
	}

	return nil
}
