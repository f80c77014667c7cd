package ingest

import (
	"fmt"

	"github.com/tinytelemetry/distill/internal/model"
)

// Processor modes selectable from configuration.
const (
	ProcessorModeParse       = "parse"
	ProcessorModePassthrough = "passthrough"
)

// RecordSink receives canonical log entries produced by a processor.
// The duckdb insert buffer is the production implementation.
type RecordSink interface {
	Add(entry *model.LogEntry)
}

// ProcessResult holds the entries produced from one ingest line. An
// OTLP envelope can carry several log records; every other payload
// shape yields at most one.
type ProcessResult struct {
	Entries []*model.LogEntry
}

// EnvelopeProcessor consumes source-tagged ingest lines and emits
// canonical entries.
type EnvelopeProcessor interface {
	Name() string
	ProcessEnvelope(model.IngestEnvelope) *ProcessResult
}

// NewEnvelopeProcessor creates the processor for the given mode. An
// empty mode selects full parsing.
func NewEnvelopeProcessor(mode string, sink RecordSink, sourceName string) (EnvelopeProcessor, error) {
	switch mode {
	case "", ProcessorModeParse:
		return NewProcessor(sink, sourceName), nil
	case ProcessorModePassthrough:
		return NewPassthroughProcessor(sink, sourceName), nil
	default:
		return nil, fmt.Errorf("unknown processor mode %q", mode)
	}
}
