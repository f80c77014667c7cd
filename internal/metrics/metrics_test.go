package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIsIdempotent(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()

	if err := Register(reg); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

func TestObserveAnalysisNormalizesInputs(t *testing.T) {
	t.Parallel()
	// Unknown outcomes collapse to success; negative durations clamp to 0.
	ObserveAnalysis("patterns", -time.Second, "weird")
	ObserveAnalysis("drift", 50*time.Millisecond, OutcomeError)
	CountLogsIngested("tcp", 3)
	CountLogsIngested("tcp", -1)
	CountTracesIngested(2)
}
