package particle

import (
	"math"
	"testing"

	filter "github.com/milosgajdos/go-smc"
	"github.com/milosgajdos/go-smc/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// mismatchedInitCond has a state longer than its covariance
type mismatchedInitCond struct{}

func (mismatchedInitCond) State() mat.Vector  { return mat.NewVecDense(3, nil) }
func (mismatchedInitCond) Cov() mat.Symmetric { return mat.NewSymDense(2, []float64{1, 0, 0, 1}) }

func TestNewEnsemble(t *testing.T) {
	assert := assert.New(t)

	x := mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	e, err := NewEnsemble(x)
	require.NoError(t, err)
	assert.Equal(4, e.Len())
	assert.Equal(2, e.Dim())
	assert.Equal([]float64{0.25, 0.25, 0.25, 0.25}, e.Weights())

	// ensemble owns a copy of the particles
	x.Set(0, 0, 100)
	assert.Equal(1.0, e.Particles().At(0, 0))

	e, err = NewEnsemble(nil)
	assert.Nil(e)
	assert.ErrorIs(err, filter.ErrShapeMismatch)

	e, err = NewEnsembleWithWeights(x, []float64{1, 2})
	assert.Nil(e)
	assert.ErrorIs(err, filter.ErrShapeMismatch)

	e, err = NewEnsembleWithWeights(x, []float64{1, -2, 1, 1})
	assert.Nil(e)
	assert.Error(err)
}

func TestDraw(t *testing.T) {
	assert := assert.New(t)

	state := mat.NewVecDense(2, []float64{1.0, -3.0})
	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.04})
	ic, err := sim.NewInitCond(state, cov)
	require.NoError(t, err)

	e, err := Draw(ic, 5000, rand.NewSource(1))
	require.NoError(t, err)
	assert.Equal(5000, e.Len())
	assert.Equal(2, e.Dim())

	est, err := e.Estimate()
	require.NoError(t, err)
	assert.InDelta(1.0, est.Val().AtVec(0), 0.05)
	assert.InDelta(-3.0, est.Val().AtVec(1), 0.05)
	assert.InDelta(0.25, est.Cov().At(0, 0), 0.03)
	assert.InDelta(0.04, est.Cov().At(1, 1), 0.01)

	e, err = Draw(ic, 0, rand.NewSource(1))
	assert.Nil(e)
	assert.Error(err)

	e, err = Draw(mismatchedInitCond{}, 10, rand.NewSource(1))
	assert.Nil(e)
	assert.ErrorIs(err, filter.ErrShapeMismatch)
}

func TestSetParticles(t *testing.T) {
	assert := assert.New(t)

	e, err := NewEnsembleWithWeights(mat.NewDense(2, 1, []float64{1, 2}), []float64{0.3, 0.7})
	require.NoError(t, err)

	assert.NoError(e.SetParticles(mat.NewDense(2, 1, []float64{5, 6})))
	assert.Equal([]float64{5, 6}, mat.Col(nil, 0, e.Particles()))
	// weights are untouched
	assert.Equal([]float64{0.3, 0.7}, e.Weights())

	assert.ErrorIs(e.SetParticles(mat.NewDense(3, 1, nil)), filter.ErrShapeMismatch)
	assert.ErrorIs(e.SetParticles(mat.NewDense(2, 2, nil)), filter.ErrShapeMismatch)

	err = e.SetParticles(mat.NewDense(2, 1, []float64{math.NaN(), 1}))
	assert.ErrorIs(err, filter.ErrNonFiniteState)
	// non-finite particles are stored, not corrected
	assert.True(math.IsNaN(e.Particles().At(0, 0)))
	assert.ErrorIs(e.CheckFinite(), filter.ErrNonFiniteState)
}

func TestReplace(t *testing.T) {
	assert := assert.New(t)

	e, err := NewEnsembleWithWeights(mat.NewDense(2, 1, []float64{1, 2}), []float64{0.9, 0.1})
	require.NoError(t, err)

	assert.NoError(e.Replace(mat.NewDense(2, 1, []float64{1, 1})))
	assert.Equal([]float64{0.5, 0.5}, e.Weights())

	assert.ErrorIs(e.Replace(mat.NewDense(1, 1, nil)), filter.ErrShapeMismatch)
}

func TestReweightNormalize(t *testing.T) {
	assert := assert.New(t)

	e, err := NewEnsemble(mat.NewDense(4, 1, []float64{1, 2, 3, 4}))
	require.NoError(t, err)

	assert.NoError(e.Reweight([]float64{1, 2, 3, 4}))
	// reweighting does not normalize
	assert.True(floats.EqualApprox([]float64{0.25, 0.5, 0.75, 1}, e.Weights(), 1e-12))

	assert.NoError(e.Normalize())
	assert.InDelta(1.0, floats.Sum(e.Weights()), 1e-12)
	assert.True(floats.EqualApprox([]float64{0.1, 0.2, 0.3, 0.4}, e.Weights(), 1e-12))

	assert.ErrorIs(e.Reweight([]float64{1}), filter.ErrShapeMismatch)

	// all likelihoods underflow
	assert.ErrorIs(e.Reweight([]float64{0, 0, 0, 0}), filter.ErrDegenerateWeights)
	assert.ErrorIs(e.Normalize(), filter.ErrDegenerateWeights)
	assert.Equal(0.0, e.ESS())

	_, err = e.Estimate()
	assert.ErrorIs(err, filter.ErrDegenerateWeights)

	e.ResetWeights()
	assert.InDelta(4.0, e.ESS(), 1e-12)
}

func TestEstimate(t *testing.T) {
	assert := assert.New(t)

	x := mat.NewDense(3, 2, []float64{
		0, 0,
		1, 2,
		2, 4,
	})
	// unnormalized weights are normalized on a copy
	w := []float64{1, 2, 1}
	e, err := NewEnsembleWithWeights(x, w)
	require.NoError(t, err)

	est, err := e.Estimate()
	require.NoError(t, err)
	assert.InDelta(1.0, est.Val().AtVec(0), 1e-12)
	assert.InDelta(2.0, est.Val().AtVec(1), 1e-12)

	// cov = 0.25*(-1,-2)(-1,-2)' + 0.25*(1,2)(1,2)'
	exp := mat.NewSymDense(2, []float64{0.5, 1, 1, 2})
	assert.True(mat.EqualApprox(exp, est.Cov(), 1e-12))

	assert.Equal(w, e.Weights())
}

func TestEstimateSingle(t *testing.T) {
	assert := assert.New(t)

	e, err := NewEnsembleWithWeights(mat.NewDense(1, 2, []float64{1.5, -2}), []float64{0.3})
	require.NoError(t, err)

	est, err := e.Estimate()
	require.NoError(t, err)
	assert.Equal([]float64{1.5, -2}, mat.Col(nil, 0, est.Val()))
	assert.True(mat.Equal(mat.NewSymDense(2, nil), est.Cov()))

	// the estimate does not alias the particles
	e.RawParticles().Set(0, 0, 10)
	assert.Equal(1.5, est.Val().AtVec(0))

	e, err = NewEnsembleWithWeights(mat.NewDense(1, 1, []float64{1}), []float64{0})
	require.NoError(t, err)
	_, err = e.Estimate()
	assert.ErrorIs(err, filter.ErrDegenerateWeights)
}
