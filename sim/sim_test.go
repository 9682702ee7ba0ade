package sim

import (
	"math"
	"os"
	"testing"

	filter "github.com/milosgajdos/go-smc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var (
	x             *mat.Dense
	uv            *mat.VecDense
	A, B, C, D, E *mat.Dense
)

func setup() {
	// three states stored in rows
	x = mat.NewDense(3, 2, []float64{
		0.5, 0.6,
		1.0, -1.0,
		0.0, 2.0,
	})
	uv = mat.NewVecDense(1, []float64{-1.0})

	A = mat.NewDense(2, 2, []float64{1.0, 1.0, 0.0, 1.0})
	B = mat.NewDense(2, 1, []float64{0.5, 1.0})
	C = mat.NewDense(1, 2, []float64{1.0, 0.0})
	D = mat.NewDense(1, 1, []float64{0.0})
	E = mat.NewDense(2, 1, []float64{1.0, 0})
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestInitCond(t *testing.T) {
	assert := assert.New(t)

	state := mat.NewVecDense(2, []float64{1.0, 3.0})
	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})

	ic, err := NewInitCond(state, cov)
	require.NoError(t, err)

	s := ic.State()
	for i := 0; i < state.Len(); i++ {
		assert.Equal(state.AtVec(i), s.AtVec(i))
	}

	c := ic.Cov()
	for i := 0; i < cov.SymmetricDim(); i++ {
		for j := 0; j < cov.SymmetricDim(); j++ {
			assert.Equal(cov.At(i, j), c.At(i, j))
		}
	}
}

func TestInitCondInvalid(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})

	testCases := []struct {
		name  string
		state mat.Vector
		cov   mat.Symmetric
		err   error
	}{
		{name: "nil state", state: nil, cov: cov},
		{name: "nil cov", state: mat.NewVecDense(2, nil), cov: nil},
		{name: "dims", state: mat.NewVecDense(3, nil), cov: cov, err: filter.ErrShapeMismatch},
		{name: "nan", state: mat.NewVecDense(2, []float64{math.NaN(), 0}), cov: cov, err: filter.ErrNonFiniteState},
		{name: "inf", state: mat.NewVecDense(2, []float64{0, math.Inf(-1)}), cov: cov, err: filter.ErrNonFiniteState},
		{name: "variance", state: mat.NewVecDense(2, nil), cov: mat.NewSymDense(2, []float64{-1, 0, 0, 1})},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ic, err := NewInitCond(tc.state, tc.cov)
			assert.Nil(t, ic)
			assert.Error(t, err)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestDiscretePropagate(t *testing.T) {
	assert := assert.New(t)

	f, err := NewDiscrete(A, B, C, D, E)
	assert.NotNil(f)
	assert.NoError(err)

	v, err := f.Propagate(x, uv, 1.0)
	assert.NoError(err)
	r, c := v.Dims()
	assert.Equal(3, r)
	assert.Equal(2, c)

	// x' = A*x + B*u for every row
	exp := mat.NewDense(3, 2, []float64{
		0.5 + 0.6 - 0.5, 0.6 - 1.0,
		1.0 - 1.0 - 0.5, -1.0 - 1.0,
		0.0 + 2.0 - 0.5, 2.0 - 1.0,
	})
	assert.True(mat.EqualApprox(exp, v, 1e-12))

	_u := mat.NewVecDense(10, nil)
	v, err = f.Propagate(x, _u, 1.0)
	assert.Nil(v)
	assert.ErrorIs(err, filter.ErrShapeMismatch)

	_x := mat.NewDense(3, 10, nil)
	v, err = f.Propagate(_x, uv, 1.0)
	assert.Nil(v)
	assert.ErrorIs(err, filter.ErrShapeMismatch)

	v, err = f.Propagate(x, nil, 1.0)
	assert.NotNil(v)
	assert.NoError(err)

	_, err = NewDiscrete(nil, B, C, D, E)
	assert.Error(err)
}

func TestDiscreteObserve(t *testing.T) {
	assert := assert.New(t)

	f, err := NewDiscrete(A, B, C, D, E)
	assert.NotNil(f)
	assert.NoError(err)

	v, err := f.Observe(x, uv)
	assert.NoError(err)
	assert.True(mat.EqualApprox(mat.NewDense(3, 1, []float64{0.5, 1.0, 0.0}), v, 1e-12))

	_u := mat.NewVecDense(10, nil)
	v, err = f.Observe(x, _u)
	assert.Nil(v)
	assert.Error(err)

	_x := mat.NewDense(2, 10, nil)
	v, err = f.Observe(_x, uv)
	assert.Nil(v)
	assert.Error(err)

	noOut, err := NewDiscrete(A, B, nil, nil, nil)
	assert.NoError(err)
	v, err = noOut.Observe(x, uv)
	assert.Nil(v)
	assert.Error(err)
}

func TestContinuousPropagate(t *testing.T) {
	assert := assert.New(t)

	f, err := NewContinuous(A, B, C, D, E)
	require.NoError(t, err)

	dt := 0.1
	v, err := f.Propagate(x, uv, dt)
	assert.NoError(err)

	// x' = x + dt*(A*x + B*u)
	row := x.RawRowView(0)
	assert.InDelta(row[0]+dt*(row[0]+row[1]-0.5), v.At(0, 0), 1e-12)
	assert.InDelta(row[1]+dt*(row[1]-1.0), v.At(0, 1), 1e-12)

	_, err = f.Propagate(mat.NewDense(1, 3, nil), uv, dt)
	assert.ErrorIs(err, filter.ErrShapeMismatch)
}

func TestToDiscrete(t *testing.T) {
	assert := assert.New(t)

	// singular A: double integrator
	Ac := mat.NewDense(2, 2, []float64{0, 1, 0, 0})
	Bc := mat.NewDense(2, 1, []float64{0, 1})
	f, err := NewContinuous(Ac, Bc, C, D, nil)
	require.NoError(t, err)

	Ts := 0.5
	d, err := f.ToDiscrete(Ts)
	require.NoError(t, err)
	assert.True(mat.EqualApprox(mat.NewDense(2, 2, []float64{1, Ts, 0, 1}), d.A, 1e-9))
	assert.InDelta(Ts*Ts/2, d.B.At(0, 0), 1e-2)
	assert.InDelta(Ts, d.B.At(1, 0), 1e-2)

	// non-singular A: scalar exponential decay
	a := -2.0
	s, err := NewContinuous(mat.NewDense(1, 1, []float64{a}), mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}), nil, nil)
	require.NoError(t, err)
	sd, err := s.ToDiscrete(Ts)
	require.NoError(t, err)
	ad := sd.A.At(0, 0)
	assert.InDelta((ad-1)/a, sd.B.At(0, 0), 1e-9)

	_, err = f.ToDiscrete(0)
	assert.Error(err)
}

func TestSystemMatrices(t *testing.T) {
	assert := assert.New(t)
	f := System{A, B, C, D, E}

	m := f.SystemMatrix()
	assert.True(mat.EqualApprox(m, A, 0.001))

	m = f.ControlMatrix()
	assert.True(mat.EqualApprox(m, B, 0.001))

	m = f.OutputMatrix()
	assert.True(mat.EqualApprox(m, C, 0.001))

	m = f.FeedForwardMatrix()
	assert.True(mat.EqualApprox(m, D, 0.001))

	empty := System{A: A}
	assert.Nil(empty.ControlMatrix())
	assert.Nil(empty.OutputMatrix())
	assert.Nil(empty.FeedForwardMatrix())
}

func TestSystemDims(t *testing.T) {
	assert := assert.New(t)
	f := System{A, B, C, D, E}

	nx, nu, ny, nz := f.SystemDims()
	r, c := A.Dims()
	assert.Equal(nx, r) // A is square [n,n]
	assert.Equal(nx, c)
	r, c = B.Dims()
	assert.Equal(nx, r) // B [n,p]
	assert.Equal(nu, c)
	r, c = C.Dims()
	assert.Equal(ny, r) // C [q,n]
	assert.Equal(nx, c)
	r, c = E.Dims()
	assert.Equal(nx, r) // E [n,r]
	assert.Equal(nz, c)

	dx, dy := f.Dims()
	assert.Equal(nx, dx)
	assert.Equal(ny, dy)
}
