package estimator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const (
	floor   = 5 * time.Minute
	ceiling = 60 * time.Minute
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEstimate_TooFewTimestampsReturnsMax(t *testing.T) {
	assert.Equal(t, ceiling, Estimate(nil, floor, ceiling))
	assert.Equal(t, ceiling, Estimate([]time.Time{}, floor, ceiling))
	assert.Equal(t, ceiling, Estimate([]time.Time{base}, floor, ceiling))
}

// A track with changes every 4 minutes converges to the 5 minute floor
func TestEstimate_RegularArrivalsClampToFloor(t *testing.T) {
	history := []time.Time{
		base,
		base.Add(4 * time.Minute),
		base.Add(8 * time.Minute),
		base.Add(12 * time.Minute),
	}

	assert.Equal(t, floor, Estimate(history, floor, ceiling))
}

func TestEstimate_MeanMinusStdDev(t *testing.T) {
	// Gaps of 20m and 40m: mean 30m, sample stddev ~14.14m
	history := []time.Time{
		base,
		base.Add(20 * time.Minute),
		base.Add(60 * time.Minute),
	}

	got := Estimate(history, floor, ceiling)
	assert.InDelta(t, (30*time.Minute - 848528*time.Millisecond).Seconds(), got.Seconds(), 1.0)
}

func TestEstimate_SingleGapUsesGap(t *testing.T) {
	history := []time.Time{base, base.Add(17 * time.Minute)}
	assert.Equal(t, 17*time.Minute, Estimate(history, floor, ceiling))
}

func TestEstimate_SparseArrivalsClampToCeiling(t *testing.T) {
	history := []time.Time{
		base,
		base.Add(24 * time.Hour),
		base.Add(48 * time.Hour),
	}
	assert.Equal(t, ceiling, Estimate(history, floor, ceiling))
}

func TestEstimate_OrderIndependent(t *testing.T) {
	ordered := []time.Time{base, base.Add(10 * time.Minute), base.Add(25 * time.Minute), base.Add(31 * time.Minute)}
	shuffled := []time.Time{ordered[2], ordered[0], ordered[3], ordered[1]}

	assert.Equal(t, Estimate(ordered, floor, ceiling), Estimate(shuffled, floor, ceiling))
}

func TestEstimate_ZeroVarianceDuplicates(t *testing.T) {
	history := []time.Time{base, base, base, base}
	assert.Equal(t, floor, Estimate(history, floor, ceiling))
}

func TestEstimate_ClampHoldsForRandomHistories(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := rng.Intn(25)
		history := make([]time.Time, n)
		for j := range history {
			history[j] = base.Add(time.Duration(rng.Int63n(int64(30 * 24 * time.Hour))))
		}

		got := Estimate(history, floor, ceiling)
		assert.GreaterOrEqual(t, got, floor)
		assert.LessOrEqual(t, got, ceiling)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, floor, Clamp(time.Minute, floor, ceiling))
	assert.Equal(t, ceiling, Clamp(2*time.Hour, floor, ceiling))
	assert.Equal(t, 10*time.Minute, Clamp(10*time.Minute, floor, ceiling))
}

func TestMeanGap(t *testing.T) {
	assert.Equal(t, time.Duration(0), MeanGap([]time.Time{base}))
	assert.Equal(t, 4*time.Minute, MeanGap([]time.Time{base, base.Add(4 * time.Minute), base.Add(8 * time.Minute)}))
}
