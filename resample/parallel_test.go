package resample

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

// For the same offset the data-parallel search yields exactly the serial index map.
func TestParallelMatchesSerial(t *testing.T) {
	assert := assert.New(t)

	rnd := rand.New(rand.NewSource(77))
	for _, n := range []int{1, 2, 3, 17, 256, 1000, 4099} {
		for trial := 0; trial < 5; trial++ {
			w := randomWeights(n, uint64(n*10+trial))
			// sparse weights make the coarse start overshoot and undershoot
			if trial%2 == 1 {
				for i := range w {
					if rnd.Float64() < 0.8 {
						w[i] = 0
					}
				}
				w[n-1] = 1
			}

			c, err := Cumulative(w)
			require.NoError(t, err)

			r := rnd.Float64()
			serial := make([]int, n)
			sc := SystematicIndex(c, r, serial)

			for _, workers := range []int{1, 2, 5, 64} {
				par := make([]int, n)
				pc, err := ParallelIndex(c, r, par, workers)
				assert.NoError(err)
				assert.Equal(sc, pc)
				if diff := cmp.Diff(serial, par); diff != "" {
					t.Errorf("n=%d trial=%d workers=%d: index map mismatch (-serial +parallel):\n%s", n, trial, workers, diff)
				}
			}
		}
	}
}

// Same seed, same offset: the resamplers agree end to end.
func TestParallelResamplerMatchesSystematic(t *testing.T) {
	assert := assert.New(t)

	w := randomWeights(2048, 99)
	for seed := uint64(1); seed <= 10; seed++ {
		serial, ss, err := Systematic{}.Resample(w, rand.NewSource(seed))
		require.NoError(t, err)
		par, ps, err := Parallel{Workers: 8}.Resample(w, rand.NewSource(seed))
		require.NoError(t, err)
		assert.Equal(ss, ps)
		assert.Empty(cmp.Diff(serial, par))
	}
}

func TestSearchTicket(t *testing.T) {
	assert := assert.New(t)

	// ties: the ticket exactly equal to a cumulative weight is owned by that particle
	c := []float64{0.25, 0.5, 0.75, 1}
	for i := 0; i < 4; i++ {
		k, ok := searchTicket(c, 0, i, 4)
		assert.True(ok)
		if i == 0 {
			assert.Equal(0, k)
			continue
		}
		assert.Equal(i-1, k)
	}

	// coarse start overshooting a heavy head
	c = []float64{0.9, 0.92, 0.94, 0.96, 0.98, 1}
	k, ok := searchTicket(c, 0.5, 4, 6)
	assert.True(ok)
	assert.Equal(0, k)

	// coarse start undershooting a heavy tail
	c = []float64{0.01, 0.02, 0.03, 0.04, 0.05, 1}
	k, ok = searchTicket(c, 0.5, 1, 6)
	assert.True(ok)
	assert.Equal(5, k)

	// ticket past the end
	k, ok = searchTicket([]float64{0.5, 0.8}, 0.9, 1, 2)
	assert.False(ok)
	assert.Equal(1, k)
}
