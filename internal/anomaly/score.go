// Package anomaly scores trace latency samples and selects exemplar
// traces that typify baseline and anomalous behavior.
package anomaly

const (
	// errorBonus makes error-flagged traces dominate the ranking; a
	// pure latency outlier must exceed 3 stdev or 3x mean to rival one.
	errorBonus = 5.0

	// extremeBonus rewards durations beyond extremeFactor times the mean.
	extremeBonus  = 2.0
	extremeFactor = 3.0

	// degenerateScore stands in for the z-score when the pool has no
	// spread at all but the sample still sits above the mean.
	degenerateScore = 3.0
)

// Score computes the composite anomaly score for one trace duration
// against its pool's mean and standard deviation. Negative z-scores
// contribute nothing: only slow-side deviation matters.
func Score(durationMS, mean, stdev float64, hasError bool) float64 {
	var score float64
	switch {
	case stdev > 0:
		score = (durationMS - mean) / stdev
		if score < 0 {
			score = 0
		}
	case durationMS > mean:
		score = degenerateScore
	}

	if hasError {
		score += errorBonus
	}
	if durationMS > mean*extremeFactor {
		score += extremeBonus
	}
	return score
}
