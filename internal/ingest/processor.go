package ingest

import (
	"strings"
	"time"

	"github.com/tinytelemetry/distill/internal/model"
)

// Processor parses incoming lines through the transformer chain and
// routes the resulting entries to the sink. It also reassembles
// pretty-printed JSON objects spread over several lines.
//
// A Processor serves one source goroutine; it is not safe for
// concurrent ProcessEnvelope calls.
type Processor struct {
	sink       RecordSink
	extractor  *Extractor
	sourceName string

	jsonBuffer   strings.Builder
	jsonDepth    int
	inJSONObject bool

	// Result from a completed multi-line object, consumed by ProcessLine.
	lastResult *ProcessResult
}

// NewProcessor creates a parsing processor writing to sink.
func NewProcessor(sink RecordSink, sourceName string) *Processor {
	return &Processor{
		sink:       sink,
		extractor:  NewExtractor(),
		sourceName: sourceName,
	}
}

func (p *Processor) Name() string { return ProcessorModeParse }

// ProcessEnvelope processes one source-tagged line.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) *ProcessResult {
	if env.Line == "" {
		return nil
	}
	source := env.Source
	if source == "" {
		source = p.sourceName
	}
	result := p.processLine(env.Line)
	if result == nil {
		return nil
	}
	for _, entry := range result.Entries {
		entry.Source = source
	}
	return result
}

// processLine returns nil while a multi-line JSON object is still
// being accumulated.
func (p *Processor) processLine(line string) *ProcessResult {
	if p.tryAccumulateJSON(line) {
		if p.lastResult != nil {
			result := p.lastResult
			p.lastResult = nil
			return result
		}
		return nil
	}
	return p.processEntry(line)
}

func (p *Processor) processEntry(line string) *ProcessResult {
	entries := p.extractor.Extract(line)
	if len(entries) == 0 {
		return nil
	}

	for _, entry := range entries {
		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now()
		}
		if p.sink != nil {
			p.sink.Add(entry)
		}
	}
	return &ProcessResult{Entries: entries}
}

// tryAccumulateJSON reports whether the line was consumed as part of a
// multi-line JSON object.
func (p *Processor) tryAccumulateJSON(line string) bool {
	trimmed := strings.TrimSpace(line)

	if !p.inJSONObject {
		if !strings.HasPrefix(trimmed, "{") {
			return false
		}
		p.inJSONObject = true
		p.jsonBuffer.Reset()
		p.jsonDepth = 0
	}

	p.jsonBuffer.WriteString(line)
	p.jsonBuffer.WriteString("\n")
	p.jsonDepth += jsonDepthDelta(line)

	if p.jsonDepth <= 0 {
		complete := strings.TrimSpace(p.jsonBuffer.String())
		p.resetJSONAccumulation()
		p.lastResult = p.processEntry(complete)
	}
	return true
}

// jsonDepthDelta counts the net change in JSON nesting depth for a
// line, ignoring braces inside string literals.
func jsonDepthDelta(line string) int {
	depth := 0
	inString := false
	escaped := false

	for _, char := range line {
		if escaped {
			escaped = false
			continue
		}
		switch char {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}
	return depth
}

func (p *Processor) resetJSONAccumulation() {
	p.inJSONObject = false
	p.jsonDepth = 0
	p.jsonBuffer.Reset()
}
