package bf

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	filter "github.com/milosgajdos/go-smc"
	"github.com/milosgajdos/go-smc/noise"
	"github.com/milosgajdos/go-smc/parallel"
	"github.com/milosgajdos/go-smc/particle"
	"github.com/milosgajdos/go-smc/rand"
	"github.com/milosgajdos/go-smc/resample"
	"github.com/sirupsen/logrus"
	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Config is Bootstrap Filter configuration
type Config struct {
	// Model is system model
	Model filter.Model
	// InitCond is initial condition of the filter
	InitCond filter.InitCond
	// StateNoise is state noise a.k.a. process noise; nil means no noise
	StateNoise filter.Noise
	// OutputNoise is output noise a.k.a. measurement noise; it weighs the particles
	OutputNoise filter.Likelihood
	// Particles is the number of filter particles
	Particles int
	// Resampler computes sample index maps; nil means resample.Systematic
	Resampler resample.Resampler
	// Policy decides when to resample; nil means resample.Always
	Policy resample.Policy
	// Workers is the number of goroutines processing the particles; non-positive value uses GOMAXPROCS
	Workers int
	// Seed seeds the filter random source; 0 seeds it with current time
	Seed uint64
	// Regularize enables Gaussian kernel regularization of resampled particles
	Regularize bool
	// Alpha is regularization parameter; non-positive Alpha uses AlphaGauss
	Alpha float64
	// Logger logs filter events; nil means logrus standard logger
	Logger logrus.FieldLogger
}

var _ particle.Particle = (*BF)(nil)

// BF is a Bootstrap Filter a.k.a. SIR Particle Filter.
// For more information about Bootstrap Filter see:
// https://en.wikipedia.org/wiki/Particle_filter#The_bootstrap_filter
//
// BF is not safe for concurrent use: a single goroutine must drive its cycles.
type BF struct {
	// model is bootstrap filter model
	model filter.Model
	// e is particle ensemble
	e *particle.Ensemble
	// q is state noise a.k.a. process noise
	q filter.Noise
	// r is output noise a.k.a. measurement noise
	r filter.Likelihood
	// src is the only source of randomness of the filter
	src xrand.Source
	// resampler computes resampling index maps
	resampler resample.Resampler
	// policy decides when to resample
	policy resample.Policy
	// workers is number of goroutines processing particles
	workers int
	// regularize enables particle regularization
	regularize bool
	// alpha is regularization parameter
	alpha float64
	// nearMisses counts clamped resampling index searches
	nearMisses int
	// log is filter logger
	log *logrus.Entry
}

// New creates new Bootstrap Filter with config c and returns it.
// It returns error if the config is invalid or if the particles fail to be generated.
func New(c *Config) (*BF, error) {
	if c.Model == nil || c.InitCond == nil || c.OutputNoise == nil {
		return nil, fmt.Errorf("model, initial condition and output noise must be defined")
	}

	// must have at least one particle; can't be negative
	if c.Particles <= 0 {
		return nil, fmt.Errorf("invalid particle count: %d", c.Particles)
	}

	nx, ny := c.Model.Dims()
	if nx <= 0 || ny <= 0 {
		return nil, fmt.Errorf("invalid model dimensions: [%d x %d]", nx, ny)
	}

	q := c.StateNoise
	if q != nil {
		if q.Cov().SymmetricDim() != nx {
			return nil, fmt.Errorf("invalid state noise dimension %d: %w", q.Cov().SymmetricDim(), filter.ErrShapeMismatch)
		}
	} else {
		q, _ = noise.NewZero(nx)
	}

	if c.OutputNoise.Cov().SymmetricDim() != ny {
		return nil, fmt.Errorf("invalid output noise dimension %d: %w", c.OutputNoise.Cov().SymmetricDim(), filter.ErrShapeMismatch)
	}

	if c.InitCond.State().Len() != nx {
		return nil, fmt.Errorf("invalid initial state dimension %d: %w", c.InitCond.State().Len(), filter.ErrShapeMismatch)
	}

	src := rand.NewSource(c.Seed)

	e, err := particle.Draw(c.InitCond, c.Particles, src)
	if err != nil {
		return nil, fmt.Errorf("failed to generate filter particles: %w", err)
	}

	resampler := c.Resampler
	if resampler == nil {
		resampler = resample.Systematic{}
	}

	policy := c.Policy
	if policy == nil {
		policy = resample.Always{}
	}

	logger := c.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &BF{
		model:      c.Model,
		e:          e,
		q:          q,
		r:          c.OutputNoise,
		src:        src,
		resampler:  resampler,
		policy:     policy,
		workers:    c.Workers,
		regularize: c.Regularize,
		alpha:      c.Alpha,
		log:        logger.WithField("session", uuid.New().String()),
	}, nil
}

// Predict propagates filter particles to the next step given input u and timestep dt
// and returns the weighted mean of the predicted particles.
// Every particle is propagated by the model and perturbed by state noise. Weights are left untouched.
// It returns error if the particles fail to be propagated; if the propagated particles contain
// NaN or Inf values they are kept and filter.ErrNonFiniteState is returned.
func (b *BF) Predict(u mat.Vector, dt float64) (filter.Estimate, error) {
	nx, _ := b.model.Dims()

	x, err := b.apply(b.e.RawParticles(), nx, func(x *mat.Dense) (*mat.Dense, error) {
		return b.model.Propagate(x, u, dt)
	})
	if err != nil {
		return nil, fmt.Errorf("particle state propagation failed: %w", err)
	}

	// noise is drawn in a single batch so its values do not depend on the number of workers
	x.Add(x, b.q.SampleN(b.e.Len(), b.src))

	if err := b.e.SetParticles(x); err != nil {
		return nil, err
	}

	return b.e.Estimate()
}

// Update weighs filter particles by the likelihood of measurement z given input u
// and returns the weighted mean of the particles.
// Weights are multiplied by the output noise density of the particle output errors, they are not normalized.
// It returns filter.ErrDegenerateWeights if all the particle weights drop to zero.
func (b *BF) Update(u, z mat.Vector) (filter.Estimate, error) {
	_, ny := b.model.Dims()
	if z.Len() != ny {
		return nil, fmt.Errorf("invalid measurement size %d: %w", z.Len(), filter.ErrShapeMismatch)
	}

	meas := mat.Col(nil, 0, z)
	l := make([]float64, b.e.Len())

	// observe particle outputs and turn their errors into likelihoods
	_, err := b.apply(b.e.RawParticles(), ny, func(x *mat.Dense) (*mat.Dense, error) {
		return b.model.Observe(x, u)
	}, func(lo, hi int, y *mat.Dense) error {
		rows, _ := y.Dims()
		for r := 0; r < rows; r++ {
			inn := y.RawRowView(r)
			floats.SubTo(inn, meas, inn)
		}
		b.r.Density(y, l[lo:hi])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("particle state observation failed: %w", err)
	}

	if err := b.e.Reweight(l); err != nil {
		return nil, err
	}

	return b.e.Estimate()
}

// Resample normalizes particle weights and, if the filter resampling policy says so,
// replaces the particles by their resampled copies with equal weights 1/N.
// It returns true if the particles have been resampled.
// It returns filter.ErrDegenerateWeights if the weights can't be normalized.
func (b *BF) Resample() (bool, error) {
	if err := b.e.Normalize(); err != nil {
		return false, err
	}

	w := b.e.RawWeights()
	if !b.policy.ShouldResample(w) {
		b.log.WithField("ess", b.e.ESS()).Debug("resampling skipped")
		return false, nil
	}

	idx, stats, err := b.resampler.Resample(w, b.src)
	if err != nil {
		return false, fmt.Errorf("failed to sample filter particles: %w", err)
	}

	if stats.Clamped > 0 {
		b.nearMisses += stats.Clamped
		b.log.WithError(filter.ErrIndexOutOfRange).WithFields(logrus.Fields{
			"clamped": stats.Clamped,
			"total":   b.nearMisses,
		}).Warn("resampling index clamped")
	}

	// the gathered particles are written to a new matrix: the current one is only read
	x, err := resample.Gather(b.e.RawParticles(), idx, b.workers)
	if err != nil {
		return false, fmt.Errorf("failed to gather filter particles: %w", err)
	}

	if b.regularize {
		if err := b.perturb(x); err != nil {
			return false, err
		}
	}

	if err := b.e.Replace(x); err != nil {
		return false, err
	}

	return true, nil
}

// Run runs one cycle of Bootstrap Filter for input u, measurement z and timestep dt:
// it predicts the particles, updates their weights, resamples them if needed and returns the resulting estimate.
func (b *BF) Run(u, z mat.Vector, dt float64) (filter.Estimate, error) {
	if _, err := b.Predict(u, dt); err != nil {
		return nil, err
	}

	if _, err := b.Update(u, z); err != nil {
		return nil, err
	}

	if _, err := b.Resample(); err != nil {
		return nil, err
	}

	return b.e.Estimate()
}

// Estimate returns the weighted mean and covariance of the filter particles.
func (b *BF) Estimate() (filter.Estimate, error) {
	return b.e.Estimate()
}

// Particles returns BF particles stored in matrix rows
func (b *BF) Particles() mat.Matrix {
	return b.e.Particles()
}

// Weights returns a vector containing BF particle weights
func (b *BF) Weights() mat.Vector {
	w := b.e.Weights()

	return mat.NewVecDense(len(w), w)
}

// ESS returns effective sample size of BF particles
func (b *BF) ESS() float64 {
	return b.e.ESS()
}

// NearMisses returns the total number of clamped resampling index searches.
func (b *BF) NearMisses() int {
	return b.nearMisses
}

// perturb adds random perturbations drawn from the particle covariance scaled by alpha to x.
func (b *BF) perturb(x *mat.Dense) error {
	rows, cols := x.Dims()
	// covariance of a single particle is undefined
	if rows < 2 {
		return nil
	}

	cov := mat.NewSymDense(cols, nil)
	stat.CovarianceMatrix(cov, x, nil)

	m, err := rand.WithCovN(cov, rows, b.src)
	if err != nil {
		return fmt.Errorf("failed to draw random particle perturbations: %w", err)
	}

	alpha := b.alpha
	// if invalid alpha is given, use the optimal value for Gaussian
	if alpha <= 0 {
		alpha = AlphaGauss(cols, rows)
	}

	m.Scale(alpha, m)
	x.Add(x, m)

	return nil
}

// apply applies fn to contiguous row blocks of x concurrently and stores the results into the rows of a new
// matrix with cols columns. Every optional post func is called with the block bounds and the block result
// before the result is copied.
// It returns error if fn fails or if it returns a block of invalid dimensions.
func (b *BF) apply(x *mat.Dense, cols int, fn func(*mat.Dense) (*mat.Dense, error), post ...func(lo, hi int, y *mat.Dense) error) (*mat.Dense, error) {
	rows, xc := x.Dims()
	out := mat.NewDense(rows, cols, nil)

	err := parallel.Blocks(rows, b.workers, func(lo, hi int) error {
		y, err := fn(x.Slice(lo, hi, 0, xc).(*mat.Dense))
		if err != nil {
			return err
		}

		if r, c := y.Dims(); r != hi-lo || c != cols {
			return fmt.Errorf("batch [%d x %d], expected [%d x %d]: %w", r, c, hi-lo, cols, filter.ErrShapeMismatch)
		}

		for _, p := range post {
			if err := p(lo, hi, y); err != nil {
				return err
			}
		}

		out.Slice(lo, hi, 0, cols).(*mat.Dense).Copy(y)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// AlphaGauss computes optimal regulariation parameter for Gaussian kernel and returns it.
func AlphaGauss(r, c int) float64 {
	return math.Pow(4.0/(float64(c)*(float64(r)+2.0)), 1/(float64(r)+4.0))
}
