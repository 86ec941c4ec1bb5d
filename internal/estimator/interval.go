// Package estimator derives a track's source polling interval from the
// timestamps at which new requests were observed.
//
// Tracks with frequent, regular arrivals converge to short intervals; sparse
// or irregular tracks drift toward the ceiling. The estimate is
// mean(gap) - stddev(gap), clamped to [min, max]. A negative value before
// clamping is expected for very regular, very frequent arrivals and yields min.
package estimator

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Estimate returns the next polling interval for a history of change timestamps.
// Fewer than two timestamps return max.
func Estimate(history []time.Time, min, max time.Duration) time.Duration {
	if len(history) < 2 {
		return max
	}

	gaps := Gaps(history)

	mean, stddev := stat.MeanStdDev(gaps, nil)
	// A single gap has no spread
	if len(gaps) < 2 {
		stddev = 0
	}

	estimate := mean - stddev
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		return max
	}

	// Compare in seconds first so huge gaps cannot overflow time.Duration
	if estimate >= max.Seconds() {
		return max
	}
	if estimate <= min.Seconds() {
		return min
	}
	return Clamp(time.Duration(estimate*float64(time.Second)), min, max)
}

// Gaps returns the inter-arrival gaps in seconds, computed over a sorted copy of history.
func Gaps(history []time.Time) []float64 {
	if len(history) < 2 {
		return nil
	}

	sorted := make([]time.Time, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Sub(sorted[i-1]).Seconds())
	}
	return gaps
}

// MeanGap returns the average gap between changes, or zero with fewer than two timestamps.
func MeanGap(history []time.Time) time.Duration {
	gaps := Gaps(history)
	if len(gaps) == 0 {
		return 0
	}
	return time.Duration(stat.Mean(gaps, nil) * float64(time.Second))
}

// Clamp bounds d to [min, max].
func Clamp(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
