package model

// IngestEnvelope carries one raw log line tagged with the input it
// arrived on ("tcp", "stdin", "http"). Sources emit envelopes; the
// ingest processor turns them into canonical entries.
type IngestEnvelope struct {
	Source string
	Line   string
}
