package ingest

import (
	"sync"
	"time"

	"github.com/tinytelemetry/distill/internal/model"
	"github.com/tinytelemetry/distill/internal/timestamp"
)

// PassthroughProcessor skips JSON parsing entirely and treats every
// line as plain text. Useful for very high-volume sources where the
// transformer chain is not worth the cost.
type PassthroughProcessor struct {
	mu         sync.RWMutex
	sink       RecordSink
	sourceName string
	plain      plainTextTransformer
}

// NewPassthroughProcessor creates a passthrough processor writing to sink.
func NewPassthroughProcessor(sink RecordSink, sourceName string) *PassthroughProcessor {
	return &PassthroughProcessor{
		sink:       sink,
		sourceName: sourceName,
		plain:      plainTextTransformer{parser: timestamp.NewParser()},
	}
}

func (p *PassthroughProcessor) Name() string { return ProcessorModePassthrough }

// ProcessEnvelope processes one source-tagged line.
func (p *PassthroughProcessor) ProcessEnvelope(env model.IngestEnvelope) *ProcessResult {
	if env.Line == "" {
		return nil
	}

	source := env.Source
	if source == "" {
		source = p.getSourceName()
	}

	entries, _ := p.plain.Transform(env.Line)
	if len(entries) == 0 {
		return nil
	}
	entry := entries[0]
	entry.Source = source
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if p.sink != nil {
		p.sink.Add(entry)
	}
	return &ProcessResult{Entries: entries}
}

// SetSourceName updates the default source name for untagged lines.
func (p *PassthroughProcessor) SetSourceName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sourceName = name
}

func (p *PassthroughProcessor) getSourceName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sourceName
}
