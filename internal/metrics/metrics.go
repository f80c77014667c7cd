// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analysis calls that returned a report.
	OutcomeSuccess = "success"
	// OutcomeError labels analysis calls that failed.
	OutcomeError = "error"
)

var (
	logsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "distill",
			Name:      "logs_ingested_total",
			Help:      "Total number of log entries ingested, partitioned by source.",
		},
		[]string{"source"},
	)

	tracesIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "distill",
			Name:      "traces_ingested_total",
			Help:      "Total number of trace summaries ingested.",
		},
	)

	analysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "distill",
			Name:      "analysis_total",
			Help:      "Total number of analysis calls, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "distill",
			Name:      "analysis_seconds",
			Help:      "Analysis call latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"kind"},
	)
)

// Register attaches the engine's collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		logsIngestedTotal,
		tracesIngestedTotal,
		analysisTotal,
		analysisDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// CountLogsIngested records ingested log entries for a source.
func CountLogsIngested(source string, n int) {
	if n <= 0 {
		return
	}
	logsIngestedTotal.WithLabelValues(source).Add(float64(n))
}

// CountTracesIngested records ingested trace summaries.
func CountTracesIngested(n int) {
	if n <= 0 {
		return
	}
	tracesIngestedTotal.Add(float64(n))
}

// ObserveAnalysis records an analysis call's duration and outcome.
func ObserveAnalysis(kind string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysisTotal.WithLabelValues(kind, label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}
