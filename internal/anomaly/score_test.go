package anomaly

import (
	"math"
	"testing"
)

func TestScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		duration float64
		mean     float64
		stdev    float64
		hasError bool
		want     float64
	}{
		{"at the mean", 100, 100, 20, false, 0},
		{"one stdev above", 120, 100, 20, false, 1},
		{"below mean clamps to zero", 60, 100, 20, false, 0},
		{"error bonus on fast trace", 60, 100, 20, true, 5},
		{"error bonus stacks on z-score", 140, 100, 20, true, 7},
		{"extreme value bonus", 350, 100, 50, false, 5 + 2},
		{"degenerate pool above mean", 500, 100, 0, false, 3 + 2},
		{"degenerate pool at mean", 100, 100, 0, false, 0},
		{"degenerate pool with error", 100, 100, 0, true, 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.duration, tc.mean, tc.stdev, tc.hasError)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Score(%v, %v, %v, %v) = %v, want %v",
					tc.duration, tc.mean, tc.stdev, tc.hasError, got, tc.want)
			}
		})
	}
}

func TestScoreErrorDominatesLatencyOutlier(t *testing.T) {
	t.Parallel()
	// Pool-derived stats: mean 150, stdev ~86.6. A moderately slow
	// clean trace must rank below a fast errored one.
	mean, stdev := 150.0, 86.6

	slow := Score(300, mean, stdev, false)
	errored := Score(150, mean, stdev, true)
	if slow >= errored {
		t.Errorf("clean outlier score %v >= errored score %v", slow, errored)
	}
}
