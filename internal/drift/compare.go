// Package drift classifies how pattern frequencies moved between a
// baseline window and a comparison window.
//
// Counts are normalized by each window's total volume before
// comparison; raw counts across windows of different size would flag
// "increases" caused purely by higher overall traffic.
package drift

import (
	"sort"

	"github.com/tinytelemetry/distill/internal/model"
)

// DefaultSignificanceThreshold is the minimum relative-rate change
// for a shared pattern to leave the stable bucket.
const DefaultSignificanceThreshold = 0.5

// Compare classifies every pattern across the two sets. Patterns in
// exactly one set land in new/disappeared; patterns in both land in
// exactly one of increased/decreased/stable depending on the relative
// rate change against threshold. threshold <= 0 selects the default.
func Compare(baseline, comparison model.PatternSet, threshold float64) model.DriftReport {
	if threshold <= 0 {
		threshold = DefaultSignificanceThreshold
	}

	totalB := totalCount(baseline)
	totalC := totalCount(comparison)

	report := model.DriftReport{
		BaselineSummary:   model.WindowSummary{TotalLogs: totalB, UniquePatterns: len(baseline)},
		ComparisonSummary: model.WindowSummary{TotalLogs: totalC, UniquePatterns: len(comparison)},
	}

	// Rate denominators default to 1 so empty windows stay defined.
	denomB := float64(totalB)
	if denomB == 0 {
		denomB = 1
	}
	denomC := float64(totalC)
	if denomC == 0 {
		denomC = 1
	}

	anomalies := &report.Anomalies

	for id, p := range comparison {
		base, shared := baseline[id]
		if !shared {
			anomalies.NewPatterns = append(anomalies.NewPatterns, *p)
			continue
		}

		rateB := float64(base.Count) / denomB
		rateC := float64(p.Count) / denomC

		var change float64
		switch {
		case rateB > 0:
			change = (rateC - rateB) / rateB
		case rateC > 0:
			change = 1.0
		default:
			change = 0.0
		}

		switch {
		case change > threshold:
			anomalies.IncreasedPatterns = append(anomalies.IncreasedPatterns,
				model.IncreasedPattern{Pattern: *p, IncreasePct: change * 100})
		case change < -threshold:
			anomalies.DecreasedPatterns = append(anomalies.DecreasedPatterns,
				model.DecreasedPattern{Pattern: *p, DecreasePct: -change * 100})
		default:
			anomalies.StablePatternsCount++
		}
	}

	for id, p := range baseline {
		if _, shared := comparison[id]; !shared {
			anomalies.DisappearedPatterns = append(anomalies.DisappearedPatterns, *p)
		}
	}

	// New and increased patterns lead operator attention; order them.
	sort.Slice(anomalies.NewPatterns, func(i, j int) bool {
		a, b := anomalies.NewPatterns[i], anomalies.NewPatterns[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.PatternID < b.PatternID
	})
	sort.Slice(anomalies.IncreasedPatterns, func(i, j int) bool {
		a, b := anomalies.IncreasedPatterns[i], anomalies.IncreasedPatterns[j]
		if a.IncreasePct != b.IncreasePct {
			return a.IncreasePct > b.IncreasePct
		}
		return a.Pattern.PatternID < b.Pattern.PatternID
	})
	sort.Slice(anomalies.DisappearedPatterns, func(i, j int) bool {
		a, b := anomalies.DisappearedPatterns[i], anomalies.DisappearedPatterns[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.PatternID < b.PatternID
	})
	sort.Slice(anomalies.DecreasedPatterns, func(i, j int) bool {
		a, b := anomalies.DecreasedPatterns[i], anomalies.DecreasedPatterns[j]
		if a.DecreasePct != b.DecreasePct {
			return a.DecreasePct > b.DecreasePct
		}
		return a.Pattern.PatternID < b.Pattern.PatternID
	})

	report.AlertLevel, report.AlertReason = ClassifyAlert(report.Anomalies)
	return report
}

func totalCount(set model.PatternSet) int {
	total := 0
	for _, p := range set {
		total += p.Count
	}
	return total
}
