package drift

import (
	"github.com/tinytelemetry/distill/internal/model"
)

// Alert levels, coarsest operator-facing signal of a drift report.
const (
	AlertCritical = "CRITICAL"
	AlertMedium   = "MEDIUM"
	AlertLow      = "LOW"
)

const (
	manyNewPatternsLimit = 5
	sharpIncreasePct     = 200.0
)

// ClassifyAlert maps drift buckets to an alert level. Rules are
// evaluated in order and the first match wins.
func ClassifyAlert(a model.DriftAnomalies) (level, reason string) {
	for _, p := range a.NewPatterns {
		if p.SeverityCounts[model.SeverityError] > 0 || p.SeverityCounts[model.SeverityCritical] > 0 {
			return AlertCritical, "new error/critical-severity pattern present"
		}
	}

	if len(a.NewPatterns) > manyNewPatternsLimit {
		return AlertMedium, "many new patterns"
	}

	for _, c := range a.IncreasedPatterns {
		if c.IncreasePct > sharpIncreasePct {
			return AlertMedium, "sharp increase"
		}
	}

	return AlertLow, ""
}
