// Package config provides YAML configuration of particle filter sessions.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	filter "github.com/milosgajdos/go-smc"
	"github.com/milosgajdos/go-smc/noise"
	"github.com/milosgajdos/go-smc/particle/bf"
	"github.com/milosgajdos/go-smc/resample"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Filter configures a bootstrap filter session.
type Filter struct {
	// Particles is the number of filter particles
	Particles int `yaml:"particles"`
	// Seed seeds the filter random source; 0 seeds it with current time
	Seed uint64 `yaml:"seed"`
	// Workers is the number of goroutines; 0 uses GOMAXPROCS
	Workers int `yaml:"workers"`
	// Resampler is one of systematic, parallel, stratified or multinomial
	Resampler string `yaml:"resampler"`
	// Policy is one of always, never or ess
	Policy string `yaml:"policy"`
	// ESSRatio is the effective sample size ratio used by ess policy
	ESSRatio float64 `yaml:"ess_ratio"`
	// Regularize enables particle regularization after resampling
	Regularize bool `yaml:"regularize"`
	// Alpha is regularization parameter
	Alpha float64 `yaml:"alpha"`
}

// Scenario configures the 1-D step tracking scenario.
type Scenario struct {
	Steps int     `yaml:"steps"`
	Dt    float64 `yaml:"dt"`
	// StepAt is the step at which the input switches from 0 to StepSize
	StepAt   int     `yaml:"step_at"`
	StepSize float64 `yaml:"step_size"`
	// InitVar is variance of the initial condition
	InitVar float64 `yaml:"init_var"`
	// StateVar is process noise variance
	StateVar float64 `yaml:"state_var"`
	// OutputVar is measurement noise variance
	OutputVar float64 `yaml:"output_var"`
	// TruthSeed seeds the ground truth noise
	TruthSeed uint64 `yaml:"truth_seed"`
}

// Config is the root configuration.
type Config struct {
	Filter   Filter   `yaml:"filter"`
	Scenario Scenario `yaml:"scenario"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Filter: Filter{
			Particles: 1000,
			Seed:      1,
			Workers:   0,
			Resampler: "parallel",
			Policy:    "always",
			ESSRatio:  resample.DefaultESSRatio,
		},
		Scenario: Scenario{
			Steps:     50,
			Dt:        1.0,
			StepAt:    10,
			StepSize:  1.0,
			InitVar:   1.0,
			StateVar:  0.01,
			OutputVar: 0.05,
			TruthSeed: 2,
		},
	}
}

// Load reads YAML configuration from path.
// Fields omitted from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML configuration from data and validates it.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return c, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	f := c.Filter
	if f.Particles <= 0 {
		return fmt.Errorf("particles must be positive, got %d", f.Particles)
	}
	if f.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", f.Workers)
	}
	if _, err := resample.New(f.Resampler, f.Workers); err != nil {
		return err
	}
	if _, err := resample.NewPolicy(f.Policy, f.ESSRatio); err != nil {
		return err
	}
	if f.Alpha < 0 {
		return fmt.Errorf("alpha must not be negative, got %f", f.Alpha)
	}

	s := c.Scenario
	if s.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", s.Steps)
	}
	if s.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", s.Dt)
	}
	if s.InitVar <= 0 || s.StateVar < 0 || s.OutputVar <= 0 {
		return fmt.Errorf("invalid noise variances: init %f, state %f, output %f", s.InitVar, s.StateVar, s.OutputVar)
	}

	return nil
}

// Noise returns the 1-D state and output noise of the scenario.
// Zero state variance yields noise.Zero: a Gaussian with singular covariance can't be sampled.
func (s Scenario) Noise() (filter.Noise, filter.Likelihood, error) {
	var q filter.Noise
	if s.StateVar == 0 {
		z, err := noise.NewZero(1)
		if err != nil {
			return nil, nil, err
		}
		q = z
	} else {
		g, err := noise.NewGaussian([]float64{0}, mat.NewSymDense(1, []float64{s.StateVar}))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create state noise: %w", err)
		}
		q = g
	}

	r, err := noise.NewGaussian([]float64{0}, mat.NewSymDense(1, []float64{s.OutputVar}))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output noise: %w", err)
	}

	return q, r, nil
}

// BF returns bootstrap filter config for the given model, initial condition and noise.
func (c *Config) BF(m filter.Model, ic filter.InitCond, q filter.Noise, r filter.Likelihood, log logrus.FieldLogger) (*bf.Config, error) {
	resampler, err := resample.New(c.Filter.Resampler, c.Filter.Workers)
	if err != nil {
		return nil, err
	}

	policy, err := resample.NewPolicy(c.Filter.Policy, c.Filter.ESSRatio)
	if err != nil {
		return nil, err
	}

	return &bf.Config{
		Model:       m,
		InitCond:    ic,
		StateNoise:  q,
		OutputNoise: r,
		Particles:   c.Filter.Particles,
		Resampler:   resampler,
		Policy:      policy,
		Workers:     c.Filter.Workers,
		Seed:        c.Filter.Seed,
		Regularize:  c.Filter.Regularize,
		Alpha:       c.Filter.Alpha,
		Logger:      log,
	}, nil
}
