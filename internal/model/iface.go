package model

import (
	"context"
	"time"
)

// LogQuerier provides read-only queries on stored log entries.
type LogQuerier interface {
	TotalLogCount(ctx context.Context) (int64, error)
	LogsBetween(ctx context.Context, start, end time.Time, limit int) ([]LogEntry, error)
	SeverityCounts(ctx context.Context) (map[string]int64, error)
	TopResourceTypes(ctx context.Context, limit int) ([]DimensionCount, error)
}

// TraceQuerier provides the candidate pools exemplar selection draws from.
type TraceQuerier interface {
	RecentTraces(ctx context.Context, limit int) ([]TraceSummary, error)
	SlowTraces(ctx context.Context, minDurationMS float64, limit int) ([]TraceSummary, error)
	ErrorTraces(ctx context.Context, limit int) ([]TraceSummary, error)
	TracesByRootName(ctx context.Context, name string, limit int) ([]TraceSummary, error)
}

// LogWriter provides append-oriented write operations for processed logs.
type LogWriter interface {
	InsertLogBatch(records []*LogEntry) error
}

// TraceWriter provides append-oriented write operations for trace summaries.
type TraceWriter interface {
	InsertTraceBatch(records []*TraceSummary) error
}

// ReadAPI is the unified read contract for query surfaces.
type ReadAPI interface {
	LogQuerier
	TraceQuerier
}
