package ingest

import (
	"testing"

	"github.com/tinytelemetry/distill/internal/model"
)

type recordingSink struct {
	entries []*model.LogEntry
}

func (s *recordingSink) Add(entry *model.LogEntry) {
	s.entries = append(s.entries, entry)
}

func TestProcessorTagsSource(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p := NewProcessor(sink, "stdin")

	r := p.ProcessEnvelope(model.IngestEnvelope{Source: "tcp", Line: "INFO server started"})
	if r == nil || len(r.Entries) != 1 {
		t.Fatalf("result = %+v, want 1 entry", r)
	}
	if r.Entries[0].Source != "tcp" {
		t.Errorf("source = %q, want envelope source over processor default", r.Entries[0].Source)
	}

	r = p.ProcessEnvelope(model.IngestEnvelope{Line: "INFO untagged line"})
	if r.Entries[0].Source != "stdin" {
		t.Errorf("source = %q, want processor default for untagged lines", r.Entries[0].Source)
	}

	if len(sink.entries) != 2 {
		t.Errorf("sink received %d entries, want 2", len(sink.entries))
	}
}

func TestProcessorMultiLineJSONAccumulation(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p := NewProcessor(sink, "stdin")

	lines := []string{
		`{`,
		`  "level": "error",`,
		`  "message": "checksum mismatch"`,
		`}`,
	}

	var r *ProcessResult
	for i, line := range lines {
		r = p.ProcessEnvelope(model.IngestEnvelope{Line: line})
		if i < len(lines)-1 && r != nil {
			t.Fatalf("line %d returned a result mid-accumulation", i)
		}
	}

	if r == nil || len(r.Entries) != 1 {
		t.Fatalf("final line result = %+v, want 1 entry", r)
	}
	if r.Entries[0].Message != "checksum mismatch" {
		t.Errorf("message = %q", r.Entries[0].Message)
	}
	if r.Entries[0].Severity != "ERROR" {
		t.Errorf("severity = %q, want ERROR", r.Entries[0].Severity)
	}
}

func TestProcessorSingleLineJSON(t *testing.T) {
	t.Parallel()
	p := NewProcessor(nil, "stdin")
	r := p.ProcessEnvelope(model.IngestEnvelope{Line: `{"message":"all on one line"}`})
	if r == nil || len(r.Entries) != 1 {
		t.Fatalf("result = %+v, want 1 entry", r)
	}
	if r.Entries[0].Message != "all on one line" {
		t.Errorf("message = %q", r.Entries[0].Message)
	}
}

func TestProcessorFillsTimestamp(t *testing.T) {
	t.Parallel()
	p := NewProcessor(nil, "stdin")
	r := p.ProcessEnvelope(model.IngestEnvelope{Line: "no timestamp in this line"})
	if r.Entries[0].Timestamp.IsZero() {
		t.Error("ingest time not filled for timestamp-less entries")
	}
}

func TestProcessorEmptyLine(t *testing.T) {
	t.Parallel()
	p := NewProcessor(nil, "stdin")
	if r := p.ProcessEnvelope(model.IngestEnvelope{Line: ""}); r != nil {
		t.Errorf("result = %+v, want nil for empty line", r)
	}
}

func TestNewEnvelopeProcessorModes(t *testing.T) {
	t.Parallel()

	p, err := NewEnvelopeProcessor("", nil, "stdin")
	if err != nil {
		t.Fatalf("default mode: %v", err)
	}
	if p.Name() != ProcessorModeParse {
		t.Errorf("default mode name = %q, want %q", p.Name(), ProcessorModeParse)
	}

	p, err = NewEnvelopeProcessor(ProcessorModePassthrough, nil, "stdin")
	if err != nil {
		t.Fatalf("passthrough mode: %v", err)
	}
	if p.Name() != ProcessorModePassthrough {
		t.Errorf("passthrough name = %q", p.Name())
	}

	if _, err := NewEnvelopeProcessor("bogus", nil, ""); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestPassthroughSkipsJSONParsing(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p := NewPassthroughProcessor(sink, "tcp")

	r := p.ProcessEnvelope(model.IngestEnvelope{Line: `{"message":"looks like json"}`})
	if r == nil || len(r.Entries) != 1 {
		t.Fatalf("result = %+v, want 1 entry", r)
	}
	// Passthrough keeps the raw line as the message; no field lookup.
	if r.Entries[0].Message != `{"message":"looks like json"}` {
		t.Errorf("message = %q, want raw line", r.Entries[0].Message)
	}
	if len(sink.entries) != 1 {
		t.Errorf("sink received %d entries, want 1", len(sink.entries))
	}
}
