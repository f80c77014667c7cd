// Package logsource unifies the engine's streaming log inputs behind
// one interface so the server can multiplex them.
package logsource

import "github.com/tinytelemetry/distill/internal/model"

// LogSource is a streaming input of raw log lines.
type LogSource interface {
	Lines() <-chan model.IngestEnvelope // read-only channel of log lines
	Stop()                              // graceful shutdown
	Name() string                       // "tcp", "stdin"
}
