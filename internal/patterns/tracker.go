// Package patterns accumulates per-template metadata over one batch of
// log entries and produces the serialized pattern summary.
package patterns

import (
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/tinytelemetry/distill/internal/logparse"
	"github.com/tinytelemetry/distill/internal/mining"
	"github.com/tinytelemetry/distill/internal/model"
)

const (
	maxSampleMessages    = 5
	summarySampleLimit   = 3
	summaryResourceLimit = 5
)

// Tracker wraps a template miner and tracks pattern metadata.
// One tracker serves exactly one analysis call; pattern ids are hashes
// of template text, so independent runs over the same data agree.
type Tracker struct {
	miner     *mining.Miner
	patterns  model.PatternSet
	total     int
	severity  map[string]int
	resources map[string]map[string]struct{}
}

// NewTracker creates a Tracker with the default miner configuration.
func NewTracker() *Tracker {
	return NewTrackerWithMiner(mining.NewMiner(mining.DefaultConfig()))
}

// NewTrackerWithMiner creates a Tracker around a caller-built miner.
func NewTrackerWithMiner(miner *mining.Miner) *Tracker {
	return &Tracker{
		miner:     miner,
		patterns:  make(model.PatternSet),
		severity:  make(map[string]int),
		resources: make(map[string]map[string]struct{}),
	}
}

// PatternID derives the stable id for a template.
func PatternID(template string) string {
	h := fnv.New64a()
	h.Write([]byte(template))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Record feeds one message through the miner and updates its pattern.
// A zero timestamp means "unknown" and leaves first/last seen alone.
// Returns the message's pattern id.
func (t *Tracker) Record(message string, ts time.Time, severity, resourceTag string) string {
	template := t.miner.Add(message)
	id := PatternID(template)

	severity = logparse.NormalizeSeverity(severity)
	t.total++
	t.severity[severity]++

	p, ok := t.patterns[id]
	if !ok {
		p = &model.Pattern{
			PatternID:      id,
			Template:       template,
			SeverityCounts: make(map[string]int),
		}
		t.patterns[id] = p
		t.resources[id] = make(map[string]struct{})
	}
	t.track(p, message, ts, severity, resourceTag)
	return id
}

func (t *Tracker) track(p *model.Pattern, message string, ts time.Time, severity, resourceTag string) {
	p.Count++
	p.SeverityCounts[severity]++

	if !ts.IsZero() {
		if p.FirstSeen.IsZero() || ts.Before(p.FirstSeen) {
			p.FirstSeen = ts
		}
		if ts.After(p.LastSeen) {
			p.LastSeen = ts
		}
	}

	if len(p.SampleMessages) < maxSampleMessages {
		p.SampleMessages = append(p.SampleMessages, message)
	}

	if resourceTag != "" {
		set := t.resources[p.PatternID]
		if _, seen := set[resourceTag]; !seen {
			set[resourceTag] = struct{}{}
			p.Resources = append(p.Resources, resourceTag)
		}
	}
}

// RecordEntry records a canonical log entry.
func (t *Tracker) RecordEntry(entry model.LogEntry) string {
	return t.Record(entry.Message, entry.Timestamp, entry.Severity, entry.ResourceType)
}

// Total returns the number of messages processed.
func (t *Tracker) Total() int {
	return t.total
}

// UniquePatterns returns the number of distinct patterns seen.
func (t *Tracker) UniquePatterns() int {
	return len(t.patterns)
}

// Patterns returns the tracked pattern set. The caller owns the result
// for the remainder of the analysis call; it is not copied.
func (t *Tracker) Patterns() model.PatternSet {
	return t.patterns
}

// Summary builds the serialized view of the run: totals, severity
// distribution, compression ratio, top patterns by count, and patterns
// carrying any ERROR or CRITICAL entries sorted by that count.
func (t *Tracker) Summary(maxPatterns int) model.PatternSummary {
	if maxPatterns <= 0 {
		maxPatterns = model.DefaultMaxPatterns
	}

	ratio := 0.0
	if len(t.patterns) > 0 {
		ratio = float64(t.total) / float64(len(t.patterns))
	}

	byCount := t.sortedPatterns(func(a, b *model.Pattern) bool {
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.PatternID < b.PatternID
	})

	top := make([]model.Pattern, 0, maxPatterns)
	for _, p := range byCount {
		if len(top) >= maxPatterns {
			break
		}
		top = append(top, serializePattern(p))
	}

	errPatterns := make([]model.Pattern, 0)
	for _, p := range byCount {
		if errorCount(p) > 0 {
			errPatterns = append(errPatterns, serializePattern(p))
		}
	}
	sort.SliceStable(errPatterns, func(i, j int) bool {
		return errorCount(&errPatterns[i]) > errorCount(&errPatterns[j])
	})

	severity := make(map[string]int, len(t.severity))
	for k, v := range t.severity {
		severity[k] = v
	}

	return model.PatternSummary{
		TotalLogsProcessed: t.total,
		UniquePatterns:     len(t.patterns),
		SeverityDistrib:    severity,
		CompressionRatio:   ratio,
		TopPatterns:        top,
		ErrorPatterns:      errPatterns,
	}
}

func (t *Tracker) sortedPatterns(less func(a, b *model.Pattern) bool) []*model.Pattern {
	out := make([]*model.Pattern, 0, len(t.patterns))
	for _, p := range t.patterns {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// serializePattern copies a pattern for output, trimming samples to 3
// and resources to 5 per the summary contract.
func serializePattern(p *model.Pattern) model.Pattern {
	out := *p

	out.SeverityCounts = make(map[string]int, len(p.SeverityCounts))
	for k, v := range p.SeverityCounts {
		out.SeverityCounts[k] = v
	}

	samples := p.SampleMessages
	if len(samples) > summarySampleLimit {
		samples = samples[:summarySampleLimit]
	}
	out.SampleMessages = append([]string(nil), samples...)

	resources := p.Resources
	if len(resources) > summaryResourceLimit {
		resources = resources[:summaryResourceLimit]
	}
	out.Resources = append([]string(nil), resources...)

	return out
}

func errorCount(p *model.Pattern) int {
	return p.SeverityCounts[model.SeverityError] + p.SeverityCounts[model.SeverityCritical]
}
