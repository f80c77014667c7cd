package patterns

import (
	"fmt"
	"testing"
	"time"

	"github.com/tinytelemetry/distill/internal/model"
)

func TestTrackerCompressesNoisyBatch(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		tr.Record(
			fmt.Sprintf("User %d logged in from 10.0.%d.%d", 1000+i, i%250, i%200),
			base.Add(time.Duration(i)*time.Second), "INFO", "gce_instance",
		)
	}
	for i := 0; i < 50; i++ {
		tr.Record(
			fmt.Sprintf("Connection timeout to host-%d:5432 after 30000ms", i),
			base.Add(time.Duration(100+i)*time.Second), "ERROR", "cloud_sql",
		)
	}

	if tr.Total() != 150 {
		t.Errorf("total = %d, want 150", tr.Total())
	}
	if tr.UniquePatterns() > 5 {
		t.Errorf("unique patterns = %d, want <= 5", tr.UniquePatterns())
	}

	s := tr.Summary(10)
	if s.TotalLogsProcessed != 150 {
		t.Errorf("summary total = %d, want 150", s.TotalLogsProcessed)
	}
	if s.CompressionRatio < 1 {
		t.Errorf("compression ratio = %v, want >= 1", s.CompressionRatio)
	}
	if s.SeverityDistrib["INFO"] != 100 || s.SeverityDistrib["ERROR"] != 50 {
		t.Errorf("severity distribution wrong: %v", s.SeverityDistrib)
	}
	if len(s.ErrorPatterns) == 0 {
		t.Fatal("expected at least one error pattern")
	}
	if s.ErrorPatterns[0].SeverityCounts["ERROR"] != 50 {
		t.Errorf("error pattern severity count = %d, want 50", s.ErrorPatterns[0].SeverityCounts["ERROR"])
	}
}

func TestTrackerPatternIdentityIsTemplateHash(t *testing.T) {
	t.Parallel()
	run := func(messages []string) map[string]int {
		tr := NewTracker()
		for _, msg := range messages {
			tr.Record(msg, time.Time{}, "INFO", "")
		}
		counts := make(map[string]int)
		for id, p := range tr.Patterns() {
			counts[id] = p.Count
		}
		return counts
	}

	msgs := []string{
		"payment 100 accepted",
		"payment 200 accepted",
		"session expired for tenant acme",
	}
	first := run(msgs)
	second := run(msgs)

	if len(first) != len(second) {
		t.Fatalf("runs disagree on pattern count: %d vs %d", len(first), len(second))
	}
	for id, count := range first {
		if second[id] != count {
			t.Errorf("pattern %s count %d vs %d across runs", id, count, second[id])
		}
	}
}

func TestTrackerMetadataAccumulation(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	var id string
	for i := 0; i < 8; i++ {
		id = tr.Record(
			fmt.Sprintf("batch %d flushed", i),
			t0.Add(time.Duration(i)*time.Minute), "INFO",
			fmt.Sprintf("shard-%d", i%3),
		)
	}

	p := tr.Patterns()[id]
	if p == nil {
		t.Fatal("pattern not tracked")
	}
	if p.Count != 8 {
		t.Errorf("count = %d, want 8", p.Count)
	}
	if !p.FirstSeen.Equal(t0) {
		t.Errorf("first seen = %v, want %v", p.FirstSeen, t0)
	}
	if !p.LastSeen.Equal(t0.Add(7 * time.Minute)) {
		t.Errorf("last seen = %v, want %v", p.LastSeen, t0.Add(7*time.Minute))
	}
	if len(p.SampleMessages) != 5 {
		t.Errorf("samples = %d, want capped at 5", len(p.SampleMessages))
	}
	if len(p.Resources) != 3 {
		t.Errorf("resources = %d, want 3 deduplicated tags: %v", len(p.Resources), p.Resources)
	}
}

func TestTrackerSummaryLimits(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	for i := 0; i < 10; i++ {
		tr.Record(fmt.Sprintf("recurring event %d happened", i), time.Time{}, "INFO",
			fmt.Sprintf("res-%d", i))
	}

	s := tr.Summary(10)
	for _, p := range s.TopPatterns {
		if len(p.SampleMessages) > 3 {
			t.Errorf("serialized samples = %d, want <= 3", len(p.SampleMessages))
		}
		if len(p.Resources) > 5 {
			t.Errorf("serialized resources = %d, want <= 5", len(p.Resources))
		}
	}
}

func TestTrackerTopPatternsSorted(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	for i := 0; i < 12; i++ {
		tr.Record("frequent worker heartbeat received", time.Time{}, "INFO", "")
	}
	for i := 0; i < 3; i++ {
		tr.Record("rare compaction cycle finished", time.Time{}, "INFO", "")
	}

	s := tr.Summary(10)
	if len(s.TopPatterns) < 2 {
		t.Fatalf("expected 2 patterns, got %d", len(s.TopPatterns))
	}
	for i := 1; i < len(s.TopPatterns); i++ {
		if s.TopPatterns[i].Count > s.TopPatterns[i-1].Count {
			t.Errorf("top patterns not sorted by count desc")
		}
	}
}

func TestTrackerEmptyBatch(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	s := tr.Summary(5)
	if s.TotalLogsProcessed != 0 || s.UniquePatterns != 0 {
		t.Errorf("empty batch summary = %+v", s)
	}
	if s.CompressionRatio != 0 {
		t.Errorf("empty batch ratio = %v, want 0", s.CompressionRatio)
	}
}

func TestTrackerMalformedEntriesStillCounted(t *testing.T) {
	t.Parallel()
	tr := NewTracker()
	tr.RecordEntry(model.LogEntry{}) // no message, no severity, zero time
	tr.RecordEntry(model.LogEntry{Message: "real message here"})

	if tr.Total() != 2 {
		t.Errorf("total = %d, want 2 (malformed entries are counted)", tr.Total())
	}
}
