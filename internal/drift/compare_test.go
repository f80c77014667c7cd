package drift

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/distill/internal/model"
	"github.com/tinytelemetry/distill/internal/patterns"
)

func buildSet(t *testing.T, counts map[string]int, severities map[string]string) model.PatternSet {
	t.Helper()
	tr := patterns.NewTracker()
	for msg, n := range counts {
		sev := severities[msg]
		if sev == "" {
			sev = "INFO"
		}
		for i := 0; i < n; i++ {
			tr.Record(msg, time.Time{}, sev, "")
		}
	}
	return tr.Patterns()
}

func TestCompareBucketsAreDisjointAndExhaustive(t *testing.T) {
	t.Parallel()
	baseline := buildSet(t, map[string]int{
		"checkpoint saved":          10,
		"cache miss for key alpha":  20,
		"old style handshake done":  5,
	}, nil)
	comparison := buildSet(t, map[string]int{
		"checkpoint saved":         10,
		"cache miss for key alpha": 90,
		"replica lag detected":     4,
	}, nil)

	r := Compare(baseline, comparison, 0.5)

	bucketTotal := len(r.Anomalies.NewPatterns) + len(r.Anomalies.IncreasedPatterns) +
		len(r.Anomalies.DecreasedPatterns) + r.Anomalies.StablePatternsCount
	if bucketTotal != len(comparison) {
		t.Errorf("comparison-side buckets cover %d patterns, want %d", bucketTotal, len(comparison))
	}

	shared := 0
	for id := range comparison {
		if _, ok := baseline[id]; ok {
			shared++
		}
	}
	if got := len(r.Anomalies.DisappearedPatterns); got != len(baseline)-shared {
		t.Errorf("disappeared = %d, want %d", got, len(baseline)-shared)
	}
}

func TestCompareRateNormalization(t *testing.T) {
	t.Parallel()
	// Same relative rate in both windows despite 10x raw volume:
	// 10/100 vs 100/1000 must be stable, not increased.
	baseline := buildSet(t, map[string]int{
		"steady heartbeat tick":  10,
		"background filler work": 90,
	}, nil)
	comparison := buildSet(t, map[string]int{
		"steady heartbeat tick":  100,
		"background filler work": 900,
	}, nil)

	r := Compare(baseline, comparison, 0.5)
	if len(r.Anomalies.IncreasedPatterns) != 0 || len(r.Anomalies.DecreasedPatterns) != 0 {
		t.Errorf("pure volume growth misclassified: %+v", r.Anomalies)
	}
	if r.Anomalies.StablePatternsCount != 2 {
		t.Errorf("stable = %d, want 2", r.Anomalies.StablePatternsCount)
	}
}

func TestCompareIncreaseAndDecrease(t *testing.T) {
	t.Parallel()
	baseline := buildSet(t, map[string]int{
		"queue depth rising":   10,
		"normal request done":  90,
	}, nil)
	comparison := buildSet(t, map[string]int{
		"queue depth rising":  60,
		"normal request done": 40,
	}, nil)

	r := Compare(baseline, comparison, 0.5)

	if len(r.Anomalies.IncreasedPatterns) != 1 {
		t.Fatalf("increased = %d, want 1", len(r.Anomalies.IncreasedPatterns))
	}
	inc := r.Anomalies.IncreasedPatterns[0]
	// rate 0.1 -> 0.6 = +500%.
	if math.Abs(inc.IncreasePct-500) > 0.01 {
		t.Errorf("increase pct = %v, want 500", inc.IncreasePct)
	}

	if len(r.Anomalies.DecreasedPatterns) != 1 {
		t.Fatalf("decreased = %d, want 1", len(r.Anomalies.DecreasedPatterns))
	}
	dec := r.Anomalies.DecreasedPatterns[0]
	// rate 0.9 -> 0.4 ≈ -55.6%.
	if math.Abs(dec.DecreasePct-55.5556) > 0.01 {
		t.Errorf("decrease pct = %v, want ≈55.56", dec.DecreasePct)
	}
}

func TestCompareNewErrorPatternIsCritical(t *testing.T) {
	t.Parallel()
	baseline := buildSet(t, map[string]int{"orders processed fine": 10}, nil)
	comparison := buildSet(t,
		map[string]int{
			"orders processed fine":     10,
			"payment gateway unreachable": 3,
		},
		map[string]string{"payment gateway unreachable": "ERROR"},
	)

	r := Compare(baseline, comparison, 0.5)

	if len(r.Anomalies.NewPatterns) != 1 {
		t.Fatalf("new = %d, want exactly 1", len(r.Anomalies.NewPatterns))
	}
	if r.Anomalies.NewPatterns[0].SeverityCounts["ERROR"] != 3 {
		t.Errorf("new pattern severity counts wrong: %v", r.Anomalies.NewPatterns[0].SeverityCounts)
	}
	if r.AlertLevel != AlertCritical {
		t.Errorf("alert level = %s, want CRITICAL", r.AlertLevel)
	}
}

func TestCompareOrderIndependence(t *testing.T) {
	t.Parallel()
	messages := make([]string, 0, 60)
	for i := 0; i < 30; i++ {
		messages = append(messages, fmt.Sprintf("request %d served", i))
	}
	for i := 0; i < 20; i++ {
		messages = append(messages, fmt.Sprintf("cache evicted entry %d", i))
	}
	for i := 0; i < 10; i++ {
		messages = append(messages, "stale lock released")
	}

	extract := func(msgs []string) model.PatternSet {
		tr := patterns.NewTracker()
		for _, m := range msgs {
			tr.Record(m, time.Time{}, "INFO", "")
		}
		return tr.Patterns()
	}

	baseline := extract(messages)

	shuffled := append([]string(nil), messages...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	comparison := extract(shuffled)

	r := Compare(baseline, comparison, 0.5)
	if len(r.Anomalies.NewPatterns) != 0 || len(r.Anomalies.DisappearedPatterns) != 0 {
		t.Errorf("shuffling entries changed pattern identity: new=%d disappeared=%d",
			len(r.Anomalies.NewPatterns), len(r.Anomalies.DisappearedPatterns))
	}
	if len(r.Anomalies.IncreasedPatterns) != 0 || len(r.Anomalies.DecreasedPatterns) != 0 {
		t.Errorf("shuffling entries changed rates: %+v", r.Anomalies)
	}
}

func TestCompareEmptyWindows(t *testing.T) {
	t.Parallel()
	empty := model.PatternSet{}
	populated := buildSet(t, map[string]int{"only here": 5}, nil)

	r := Compare(empty, populated, 0.5)
	if len(r.Anomalies.NewPatterns) != 1 {
		t.Errorf("new = %d, want 1", len(r.Anomalies.NewPatterns))
	}

	r = Compare(populated, empty, 0.5)
	if len(r.Anomalies.DisappearedPatterns) != 1 {
		t.Errorf("disappeared = %d, want 1", len(r.Anomalies.DisappearedPatterns))
	}

	r = Compare(empty, empty, 0.5)
	if r.AlertLevel != AlertLow {
		t.Errorf("empty-vs-empty alert = %s, want LOW", r.AlertLevel)
	}
}

func TestClassifyAlertRuleOrder(t *testing.T) {
	t.Parallel()
	mkPattern := func(count int, sev string) model.Pattern {
		p := model.Pattern{Count: count, SeverityCounts: map[string]int{}}
		if sev != "" {
			p.SeverityCounts[sev] = count
		}
		return p
	}

	// Critical beats "many new patterns".
	a := model.DriftAnomalies{}
	for i := 0; i < 7; i++ {
		a.NewPatterns = append(a.NewPatterns, mkPattern(1, ""))
	}
	a.NewPatterns = append(a.NewPatterns, mkPattern(1, "CRITICAL"))
	level, reason := ClassifyAlert(a)
	if level != AlertCritical {
		t.Errorf("level = %s (%s), want CRITICAL", level, reason)
	}

	// Many benign new patterns → MEDIUM.
	a = model.DriftAnomalies{}
	for i := 0; i < 6; i++ {
		a.NewPatterns = append(a.NewPatterns, mkPattern(1, "INFO"))
	}
	level, reason = ClassifyAlert(a)
	if level != AlertMedium || reason != "many new patterns" {
		t.Errorf("level = %s (%s), want MEDIUM many new patterns", level, reason)
	}

	// Sharp increase → MEDIUM.
	a = model.DriftAnomalies{
		IncreasedPatterns: []model.IncreasedPattern{{IncreasePct: 250}},
	}
	level, reason = ClassifyAlert(a)
	if level != AlertMedium || reason != "sharp increase" {
		t.Errorf("level = %s (%s), want MEDIUM sharp increase", level, reason)
	}

	// Nothing notable → LOW.
	level, _ = ClassifyAlert(model.DriftAnomalies{StablePatternsCount: 3})
	if level != AlertLow {
		t.Errorf("level = %s, want LOW", level)
	}
}

func TestReportSerializesBucketPercentageFields(t *testing.T) {
	t.Parallel()
	report := model.DriftReport{
		Anomalies: model.DriftAnomalies{
			IncreasedPatterns: []model.IncreasedPattern{
				{Pattern: model.Pattern{PatternID: "a1", Template: "cache miss for key <*>"}, IncreasePct: 150},
			},
			DecreasedPatterns: []model.DecreasedPattern{
				{Pattern: model.Pattern{PatternID: "b2", Template: "checkpoint saved"}, DecreasePct: 60},
			},
		},
	}

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	body := string(raw)

	if !strings.Contains(body, `"increase_pct":150`) {
		t.Errorf("increased bucket missing increase_pct field: %s", body)
	}
	if !strings.Contains(body, `"decrease_pct":60`) {
		t.Errorf("decreased bucket missing decrease_pct field: %s", body)
	}
}
