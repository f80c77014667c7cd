// Package analysis orchestrates the engine's read-side operations:
// pattern extraction over a time window, drift comparison between two
// windows, and exemplar trace selection.
//
// Every call builds a fresh miner and tracker, so calls share no
// mutable state and need no locking.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinytelemetry/distill/internal/anomaly"
	"github.com/tinytelemetry/distill/internal/drift"
	"github.com/tinytelemetry/distill/internal/metrics"
	"github.com/tinytelemetry/distill/internal/mining"
	"github.com/tinytelemetry/distill/internal/model"
	"github.com/tinytelemetry/distill/internal/patterns"
)

// Config tunes the analysis service.
type Config struct {
	// SignificanceThreshold is the relative-rate change for drift
	// classification. Zero selects the default.
	SignificanceThreshold float64

	// MaxPatterns caps the top-pattern list in summaries.
	MaxPatterns int

	// WindowLimit caps the number of entries fetched per window.
	WindowLimit int

	// MaskRulesPath optionally points at a YAML file with additional
	// masking rules applied before the built-in ones.
	MaskRulesPath string
}

// Service runs analysis calls over a telemetry store.
type Service struct {
	logger    *slog.Logger
	store     model.ReadAPI
	cfg       Config
	maskRules []mining.MaskRule
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overview is the store-level summary served by the stats endpoint.
type Overview struct {
	TotalLogs        int64                  `json:"total_logs"`
	SeverityCounts   map[string]int64       `json:"severity_counts"`
	TopResourceTypes []model.DimensionCount `json:"top_resource_types"`
}

// NewService creates a Service. The mask rules file, when configured,
// is loaded once at construction.
func NewService(logger *slog.Logger, store model.ReadAPI, cfg Config) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SignificanceThreshold <= 0 {
		cfg.SignificanceThreshold = model.DefaultSignificanceThreshold
	}
	if cfg.MaxPatterns <= 0 {
		cfg.MaxPatterns = model.DefaultMaxPatterns
	}
	if cfg.WindowLimit <= 0 {
		cfg.WindowLimit = model.DefaultWindowLimit
	}

	var rules []mining.MaskRule
	if cfg.MaskRulesPath != "" {
		loaded, err := mining.LoadMaskRules(cfg.MaskRulesPath)
		if err != nil {
			return nil, fmt.Errorf("loading mask rules: %w", err)
		}
		rules = loaded
		logger.Info("loaded custom mask rules", "path", cfg.MaskRulesPath, "rules", len(loaded))
	}

	return &Service{
		logger:    logger,
		store:     store,
		cfg:       cfg,
		maskRules: rules,
	}, nil
}

// Patterns extracts the pattern summary for one window.
func (s *Service) Patterns(ctx context.Context, w Window, maxPatterns int) (model.PatternSummary, error) {
	start := time.Now()
	if maxPatterns <= 0 {
		maxPatterns = s.cfg.MaxPatterns
	}

	tracker, err := s.extractWindow(ctx, w)
	if err != nil {
		metrics.ObserveAnalysis("patterns", time.Since(start), metrics.OutcomeError)
		return model.PatternSummary{}, err
	}

	summary := tracker.Summary(maxPatterns)
	metrics.ObserveAnalysis("patterns", time.Since(start), metrics.OutcomeSuccess)
	s.logger.Debug("pattern extraction finished",
		"total", summary.TotalLogsProcessed, "unique", summary.UniquePatterns)
	return summary, nil
}

// Drift extracts both windows and classifies how pattern rates moved.
func (s *Service) Drift(ctx context.Context, baseline, comparison Window, threshold float64) (model.DriftReport, error) {
	start := time.Now()
	if threshold <= 0 {
		threshold = s.cfg.SignificanceThreshold
	}

	baseTracker, err := s.extractWindow(ctx, baseline)
	if err != nil {
		metrics.ObserveAnalysis("drift", time.Since(start), metrics.OutcomeError)
		return model.DriftReport{}, fmt.Errorf("baseline window: %w", err)
	}
	compTracker, err := s.extractWindow(ctx, comparison)
	if err != nil {
		metrics.ObserveAnalysis("drift", time.Since(start), metrics.OutcomeError)
		return model.DriftReport{}, fmt.Errorf("comparison window: %w", err)
	}

	report := drift.Compare(baseTracker.Patterns(), compTracker.Patterns(), threshold)
	metrics.ObserveAnalysis("drift", time.Since(start), metrics.OutcomeSuccess)
	s.logger.Debug("drift comparison finished",
		"alert_level", report.AlertLevel,
		"new", len(report.Anomalies.NewPatterns),
		"disappeared", len(report.Anomalies.DisappearedPatterns))
	return report, nil
}

// Exemplars selects baseline and anomaly exemplar traces.
func (s *Service) Exemplars(ctx context.Context, preferErrors bool, minSampleSize int) (*model.ExemplarReport, error) {
	start := time.Now()

	selector := anomaly.NewSelector(s.store)
	report, err := selector.Select(ctx, anomaly.SelectOptions{
		PreferErrors:  preferErrors,
		MinSampleSize: minSampleSize,
	})
	if err != nil {
		metrics.ObserveAnalysis("exemplars", time.Since(start), metrics.OutcomeError)
		return nil, err
	}

	metrics.ObserveAnalysis("exemplars", time.Since(start), metrics.OutcomeSuccess)
	s.logger.Debug("exemplar selection finished",
		"method", report.SelectionMethod,
		"pool_size", report.Stats.Count,
		"anomaly", report.Anomaly.TraceID)
	return report, nil
}

// StoreOverview reports store-level totals for the stats endpoint.
func (s *Service) StoreOverview(ctx context.Context) (Overview, error) {
	total, err := s.store.TotalLogCount(ctx)
	if err != nil {
		return Overview{}, err
	}
	severities, err := s.store.SeverityCounts(ctx)
	if err != nil {
		return Overview{}, err
	}
	top, err := s.store.TopResourceTypes(ctx, 10)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		TotalLogs:        total,
		SeverityCounts:   severities,
		TopResourceTypes: top,
	}, nil
}

// extractWindow fetches one window of entries and runs them through a
// fresh tracker.
func (s *Service) extractWindow(ctx context.Context, w Window) (*patterns.Tracker, error) {
	entries, err := s.store.LogsBetween(ctx, w.Start, w.End, s.cfg.WindowLimit)
	if err != nil {
		return nil, err
	}

	tracker := s.newTracker()
	for _, entry := range entries {
		tracker.RecordEntry(entry)
	}
	return tracker, nil
}

func (s *Service) newTracker() *patterns.Tracker {
	if len(s.maskRules) == 0 {
		return patterns.NewTracker()
	}
	miner := mining.NewMinerWithMasker(mining.DefaultConfig(), mining.NewMaskerWithRules(s.maskRules))
	return patterns.NewTrackerWithMiner(miner)
}
