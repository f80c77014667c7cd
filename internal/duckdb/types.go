package duckdb

import "github.com/tinytelemetry/distill/internal/model"

// Type aliases re-export model types so store consumers can stay on a
// single import.
type LogEntry = model.LogEntry
type TraceSummary = model.TraceSummary
type DimensionCount = model.DimensionCount
type LogWriter = model.LogWriter
type TraceWriter = model.TraceWriter
type ReadAPI = model.ReadAPI
