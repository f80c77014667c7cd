package duckdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinytelemetry/distill/internal/model"
)

// TotalLogCount returns the number of stored log entries.
func (s *Store) TotalLogCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM logs`).Scan(&count)
	return count, err
}

// LogsBetween returns entries whose timestamp falls in [start, end),
// oldest first, capped at limit.
func (s *Store) LogsBetween(ctx context.Context, start, end time.Time, limit int) ([]model.LogEntry, error) {
	if limit <= 0 {
		limit = model.DefaultWindowLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, severity, message, raw_line, resource_type,
		       service, hostname, CAST(attributes AS VARCHAR), source
		FROM logs
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC
		LIMIT ?`, start, end, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var attrsJSON string
		if err := rows.Scan(&e.Timestamp, &e.Severity, &e.Message, &e.RawLine,
			&e.ResourceType, &e.Service, &e.Hostname, &attrsJSON, &e.Source); err != nil {
			slog.Error("scan failed", "query", "LogsBetween", "error", err)
			continue
		}
		e.Attributes = decodeAttributes(attrsJSON)
		results = append(results, e)
	}
	return results, rows.Err()
}

// SeverityCounts returns the total entry count per severity label.
func (s *Store) SeverityCounts(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*) FROM logs GROUP BY severity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var severity string
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			slog.Error("scan failed", "query", "SeverityCounts", "error", err)
			continue
		}
		result[severity] = count
	}
	return result, rows.Err()
}

// TopResourceTypes returns resource types by descending entry count.
func (s *Store) TopResourceTypes(ctx context.Context, limit int) ([]model.DimensionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(NULLIF(resource_type, ''), 'unknown') AS rt, COUNT(*) AS count
		FROM logs
		GROUP BY rt
		ORDER BY count DESC, rt ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.DimensionCount
	for rows.Next() {
		var item model.DimensionCount
		if err := rows.Scan(&item.Value, &item.Count); err != nil {
			slog.Error("scan failed", "query", "TopResourceTypes", "error", err)
			continue
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// RecentTraces returns the most recently ingested trace summaries.
func (s *Store) RecentTraces(ctx context.Context, limit int) ([]model.TraceSummary, error) {
	return s.queryTraces(ctx, `
		SELECT trace_id, duration_ms, root_name, has_error
		FROM traces
		ORDER BY ingested_at DESC
		LIMIT ?`, limit)
}

// SlowTraces returns traces at or above the duration floor, slowest first.
func (s *Store) SlowTraces(ctx context.Context, minDurationMS float64, limit int) ([]model.TraceSummary, error) {
	return s.queryTraces(ctx, `
		SELECT trace_id, duration_ms, root_name, has_error
		FROM traces
		WHERE duration_ms >= ?
		ORDER BY duration_ms DESC
		LIMIT ?`, minDurationMS, limit)
}

// ErrorTraces returns the most recent error-flagged traces.
func (s *Store) ErrorTraces(ctx context.Context, limit int) ([]model.TraceSummary, error) {
	return s.queryTraces(ctx, `
		SELECT trace_id, duration_ms, root_name, has_error
		FROM traces
		WHERE has_error
		ORDER BY ingested_at DESC
		LIMIT ?`, limit)
}

// TracesByRootName returns traces whose root operation name matches
// exactly, fastest first.
func (s *Store) TracesByRootName(ctx context.Context, name string, limit int) ([]model.TraceSummary, error) {
	return s.queryTraces(ctx, `
		SELECT trace_id, duration_ms, root_name, has_error
		FROM traces
		WHERE root_name = ?
		ORDER BY duration_ms ASC
		LIMIT ?`, name, limit)
}

// TotalTraceCount returns the number of stored trace summaries.
func (s *Store) TotalTraceCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM traces`).Scan(&count)
	return count, err
}

func (s *Store) queryTraces(ctx context.Context, query string, args ...interface{}) ([]model.TraceSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.TraceSummary
	for rows.Next() {
		var t model.TraceSummary
		if err := rows.Scan(&t.TraceID, &t.DurationMS, &t.Name, &t.HasError); err != nil {
			slog.Error("scan failed", "query", "traces", "error", err)
			continue
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// TableRowCounts returns the row count for each known table.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(context.Background())
	defer cancel()

	allowedTables := []string{"logs", "traces"}
	counts := make(map[string]int64, len(allowedTables))

	for _, table := range allowedTables {
		var count int64
		// Table names are hardcoded constants, not user input.
		err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			continue
		}
		counts[table] = count
	}
	return counts, nil
}

// DeleteBefore removes logs and traces older than the cutoff, returning
// the number of rows removed.
func (s *Store) DeleteBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx(context.Background())
	defer cancel()

	var total int64
	res, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}

	res, err = s.db.ExecContext(ctx, `DELETE FROM traces WHERE ingested_at < ?`, cutoff)
	if err != nil {
		return total, err
	}
	if n, err := res.RowsAffected(); err == nil {
		total += n
	}
	return total, nil
}

func decodeAttributes(attrsJSON string) map[string]string {
	attrs := make(map[string]string)
	if attrsJSON == "" || attrsJSON == "{}" {
		return attrs
	}
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(attrsJSON), &raw); err != nil {
		return attrs
	}
	for k, v := range raw {
		attrs[k] = fmt.Sprintf("%v", v)
	}
	return attrs
}
