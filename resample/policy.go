package resample

import "fmt"

// Policy decides whether the particles should be resampled
type Policy interface {
	// ShouldResample returns true if the particles with weights w should be resampled
	ShouldResample(w []float64) bool
}

// Always resamples on every call.
type Always struct{}

// ShouldResample always returns true.
func (Always) ShouldResample([]float64) bool { return true }

// Never disables resampling.
type Never struct{}

// ShouldResample always returns false.
func (Never) ShouldResample([]float64) bool { return false }

// DefaultESSRatio is the default effective sample size ratio of ESSBelow
const DefaultESSRatio = 0.5

// ESSBelow resamples when effective sample size drops below Ratio*N.
type ESSBelow struct {
	// Ratio is the fraction of the particle count. Non-positive Ratio uses DefaultESSRatio.
	Ratio float64
}

// ShouldResample returns true if ESS of w is smaller than Ratio*len(w).
func (p ESSBelow) ShouldResample(w []float64) bool {
	ratio := p.Ratio
	if ratio <= 0 {
		ratio = DefaultESSRatio
	}

	return ESS(w) < ratio*float64(len(w))
}

// NewPolicy returns a Policy given its name: "always", "never" or "ess".
// ratio is only used by the "ess" policy.
func NewPolicy(name string, ratio float64) (Policy, error) {
	switch name {
	case "", "always":
		return Always{}, nil
	case "never":
		return Never{}, nil
	case "ess":
		if ratio > 1 {
			return nil, fmt.Errorf("invalid ESS ratio: %f", ratio)
		}
		return ESSBelow{Ratio: ratio}, nil
	default:
		return nil, fmt.Errorf("unknown resampling policy: %q", name)
	}
}
