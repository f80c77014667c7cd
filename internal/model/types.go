package model

import "time"

// LogEntry represents a single log entry handed to the engine.
// It is the canonical type for storage, ingest, and analysis.
type LogEntry struct {
	Timestamp    time.Time
	Severity     string // INFO/WARNING/ERROR/CRITICAL/DEBUG
	Message      string
	RawLine      string
	ResourceType string
	Service      string
	Hostname     string
	Attributes   map[string]string
	Source       string // "tcp", "stdin", "http", "otlp"
}

// TraceSummary represents one execution trace reduced to the fields the
// anomaly scorer needs. Read-only input; never mutated by analysis.
type TraceSummary struct {
	TraceID    string  `json:"trace_id"`
	DurationMS float64 `json:"duration_ms"`
	Name       string  `json:"name,omitempty"`
	HasError   bool    `json:"has_error"`
}

// Pattern is one mined message template plus the metadata accumulated
// across every matching log entry. The template is immutable once the
// pattern exists; everything else mutates on each match.
type Pattern struct {
	PatternID      string         `json:"pattern_id"`
	Template       string         `json:"template"`
	Count          int            `json:"count"`
	FirstSeen      time.Time      `json:"first_seen"`
	LastSeen       time.Time      `json:"last_seen"`
	SeverityCounts map[string]int `json:"severity_counts"`
	SampleMessages []string       `json:"sample_messages"`
	Resources      []string       `json:"resources"`
}

// PatternSet is the full map of pattern id to pattern produced by one
// tracker over one batch of entries. It is owned by the caller of that
// batch and never shared across windows.
type PatternSet map[string]*Pattern

// PatternSummary is the serialized view of one extraction run.
type PatternSummary struct {
	TotalLogsProcessed int            `json:"total_logs_processed"`
	UniquePatterns     int            `json:"unique_patterns"`
	SeverityDistrib    map[string]int `json:"severity_distribution"`
	CompressionRatio   float64        `json:"compression_ratio"`
	TopPatterns        []Pattern      `json:"top_patterns"`
	ErrorPatterns      []Pattern      `json:"error_patterns"`
}

// WindowSummary describes one comparison window inside a drift report.
type WindowSummary struct {
	TotalLogs      int `json:"total_logs"`
	UniquePatterns int `json:"unique_patterns"`
}

// IncreasedPattern is a pattern present in both windows whose relative
// rate rose past the significance threshold.
type IncreasedPattern struct {
	Pattern     Pattern `json:"pattern"`
	IncreasePct float64 `json:"increase_pct"`
}

// DecreasedPattern is a pattern present in both windows whose relative
// rate fell past the significance threshold.
type DecreasedPattern struct {
	Pattern     Pattern `json:"pattern"`
	DecreasePct float64 `json:"decrease_pct"`
}

// DriftAnomalies holds the five disjoint classification buckets.
type DriftAnomalies struct {
	NewPatterns         []Pattern          `json:"new_patterns"`
	DisappearedPatterns []Pattern          `json:"disappeared_patterns"`
	IncreasedPatterns   []IncreasedPattern `json:"increased_patterns"`
	DecreasedPatterns   []DecreasedPattern `json:"decreased_patterns"`
	StablePatternsCount int                `json:"stable_patterns_count"`
}

// DriftReport is the full output of comparing two pattern sets.
type DriftReport struct {
	BaselineSummary   WindowSummary  `json:"baseline_summary"`
	ComparisonSummary WindowSummary  `json:"comparison_summary"`
	Anomalies         DriftAnomalies `json:"anomalies"`
	AlertLevel        string         `json:"alert_level"`
	AlertReason       string         `json:"alert_reason"`
}

// ExemplarTrace is a selected trace plus the reason it was chosen.
type ExemplarTrace struct {
	TraceSummary
	SelectionReason string `json:"selection_reason"`
}

// ExemplarStats summarizes the candidate pool the exemplars came from.
type ExemplarStats struct {
	Count            int     `json:"count"`
	P50MS            float64 `json:"p50_ms"`
	MeanMS           float64 `json:"mean_ms"`
	StdevMS          float64 `json:"stdev_ms"`
	ErrorTracesFound int     `json:"error_traces_found"`
}

// ExemplarValidation carries the sanity flags attached to a selection.
type ExemplarValidation struct {
	BaselineValid           bool `json:"baseline_valid"`
	AnomalyValid            bool `json:"anomaly_valid"`
	SampleAdequate          bool `json:"sample_adequate"`
	LatencyVarianceDetected bool `json:"latency_variance_detected"`
}

// ExemplarReport is the immutable result of one exemplar selection call.
type ExemplarReport struct {
	Stats           ExemplarStats      `json:"stats"`
	Baseline        ExemplarTrace      `json:"baseline"`
	Anomaly         ExemplarTrace      `json:"anomaly"`
	Validation      ExemplarValidation `json:"validation"`
	SelectionMethod string             `json:"selection_method"`
}

// SeverityCount pairs a severity label with its entry count.
type SeverityCount struct {
	Severity string
	Count    int64
}

// DimensionCount represents grouped counts by a single dimension value
// (for example service or resource type).
type DimensionCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}
