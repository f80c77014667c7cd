// Package stats computes descriptive statistics over numeric samples.
//
// Percentiles use nearest-rank indexing (sorted[floor(n*q)]) and the
// standard deviation is the sample form (N-1 denominator). Both choices
// are contractual: downstream scoring reproduces exact values from them.
package stats

import (
	"math"
	"sort"
)

// Summary holds descriptive statistics for one numeric series.
type Summary struct {
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Stdev    float64 `json:"stdev"`
	Variance float64 `json:"variance"`
	P90      float64 `json:"p90"`
	P95      float64 `json:"p95"`
	P99      float64 `json:"p99"`
}

// Describe computes a Summary for the given points. The input slice is
// not modified. Returns nil for an empty input; that is not an error.
func Describe(points []float64) *Summary {
	if len(points) == 0 {
		return nil
	}

	sorted := append([]float64(nil), points...)
	sort.Float64s(sorted)

	n := len(sorted)
	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	variance := 0.0
	if n > 1 {
		sq := 0.0
		for _, v := range sorted {
			diff := v - mean
			sq += diff * diff
		}
		variance = sq / float64(n-1)
	}

	return &Summary{
		Count:    n,
		Min:      sorted[0],
		Max:      sorted[n-1],
		Mean:     mean,
		Median:   percentile(sorted, 0.5),
		Stdev:    math.Sqrt(variance),
		Variance: variance,
		P90:      percentile(sorted, 0.90),
		P95:      percentile(sorted, 0.95),
		P99:      percentile(sorted, 0.99),
	}
}

// percentile returns sorted[floor(n*q)], clamped to the last element.
// Nearest-rank, no interpolation.
func percentile(sorted []float64, q float64) float64 {
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
