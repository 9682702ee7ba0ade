package resample

import (
	"github.com/milosgajdos/go-smc/rand"
	xrand "golang.org/x/exp/rand"
)

// Multinomial is the multinomial resampler: every output slot is drawn
// independently from the weights by a roulette wheel draw.
type Multinomial struct{}

// Resample draws len(w) independent indices from w using src.
func (Multinomial) Resample(w []float64, src xrand.Source) ([]int, Stats, error) {
	// validates the weights the same way the other resamplers do
	if _, err := Cumulative(w); err != nil {
		return nil, Stats{}, err
	}

	idx, err := rand.RouletteDrawN(w, len(w), src)
	if err != nil {
		return nil, Stats{}, err
	}

	return idx, Stats{}, nil
}
