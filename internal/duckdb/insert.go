package duckdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/distill/internal/model"
)

// DefaultFlushQueueSize is the number of batches that can be queued
// for async flushing.
const DefaultFlushQueueSize = 64

// BufferConfig holds tunable parameters for a write buffer.
type BufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
	Logger         *slog.Logger
}

// Buffer batches records and flushes them asynchronously. Add never
// blocks on database IO: batches go to a flush goroutine, with an
// inline flush as the safety valve when the queue is full.
type Buffer[T any] struct {
	flush  func([]T) error
	logger *slog.Logger

	mu            sync.Mutex
	pending       []T
	flushChan     chan []T
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup

	// backpressureCount tracks inline flushes for throttled logging.
	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
}

// NewLogBuffer creates a buffer that flushes log entries to the writer.
func NewLogBuffer(writer model.LogWriter, conf ...BufferConfig) *Buffer[*model.LogEntry] {
	return newBuffer(writer.InsertLogBatch, conf...)
}

// NewTraceBuffer creates a buffer that flushes trace summaries to the writer.
func NewTraceBuffer(writer model.TraceWriter, conf ...BufferConfig) *Buffer[*model.TraceSummary] {
	return newBuffer(writer.InsertTraceBatch, conf...)
}

func newBuffer[T any](flush func([]T) error, conf ...BufferConfig) *Buffer[T] {
	batchSize := 2000
	flushInterval := 100 * time.Millisecond
	flushQueueSize := DefaultFlushQueueSize
	logger := slog.Default()
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
		if conf[0].Logger != nil {
			logger = conf[0].Logger
		}
	}

	b := &Buffer[T]{
		flush:         flush,
		logger:        logger,
		pending:       make([]T, 0, batchSize),
		flushChan:     make(chan []T, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

// Add queues a record for batch insertion.
func (b *Buffer[T]) Add(record T) {
	b.mu.Lock()
	b.pending = append(b.pending, record)
	shouldFlush := len(b.pending) >= b.maxBatch
	var batch []T
	if shouldFlush {
		batch = b.pending
		b.pending = make([]T, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if shouldFlush {
		b.dispatch(batch)
	}
}

// Stop flushes remaining records and waits for all writes to complete.
func (b *Buffer[T]) Stop() {
	close(b.done)
	// tickLoop performs the final drain before flushChan closes, so no
	// pending record is lost.
	b.tickWg.Wait()
	close(b.flushChan)
	b.wg.Wait()
}

func (b *Buffer[T]) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending()
			return
		}
	}
}

func (b *Buffer[T]) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]T, 0, b.maxBatch)
	b.mu.Unlock()

	b.dispatch(batch)
}

// dispatch hands a batch to the flush worker, falling back to an
// inline flush when the queue is full (the database is falling behind).
func (b *Buffer[T]) dispatch(batch []T) {
	select {
	case b.flushChan <- batch:
	default:
		b.logBackpressure()
		if err := b.flush(batch); err != nil {
			b.logger.Error("inline flush failed", "error", err)
		}
	}
}

func (b *Buffer[T]) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		if err := b.flush(batch); err != nil {
			b.logger.Error("batch flush failed", "error", err)
		}
	}
}

// logBackpressure emits a throttled warning, at most once per 10 seconds.
func (b *Buffer[T]) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		b.logger.Warn("write backpressure, flush queue full", "inline_flushes", count)
	}
}

// InsertLogBatch appends log entries in a single transaction. When the
// batch fails it is retried record-by-record to salvage what it can;
// unsalvageable records are dropped with a log line.
func (s *Store) InsertLogBatch(records []*model.LogEntry) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx(context.Background())
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertLogsTx(ctx, records); err == nil {
		return nil
	}

	var failed int
	for _, r := range records {
		if rerr := s.insertLogsTx(ctx, []*model.LogEntry{r}); rerr != nil {
			failed++
			slog.Error("dropping log record", "service", r.Service, "error", rerr)
		}
	}
	if failed > 0 {
		slog.Error("log batch partially failed", "dropped", failed, "total", len(records))
	}
	return nil
}

func (s *Store) insertLogsTx(ctx context.Context, records []*model.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO logs
		(timestamp, severity, message, raw_line, resource_type, service, hostname, attributes, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		attrsJSON := []byte("{}")
		if len(r.Attributes) > 0 {
			if data, merr := json.Marshal(r.Attributes); merr == nil {
				attrsJSON = data
			}
		}

		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}

		if _, err := stmt.ExecContext(ctx,
			ts, r.Severity, r.Message, r.RawLine,
			r.ResourceType, r.Service, r.Hostname,
			string(attrsJSON), r.Source,
		); err != nil {
			return fmt.Errorf("log insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// InsertTraceBatch appends trace summaries in a single transaction,
// with the same record-by-record salvage as InsertLogBatch.
func (s *Store) InsertTraceBatch(records []*model.TraceSummary) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx(context.Background())
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertTracesTx(ctx, records); err == nil {
		return nil
	}

	var failed int
	for _, r := range records {
		if rerr := s.insertTracesTx(ctx, []*model.TraceSummary{r}); rerr != nil {
			failed++
			slog.Error("dropping trace record", "trace_id", r.TraceID, "error", rerr)
		}
	}
	if failed > 0 {
		slog.Error("trace batch partially failed", "dropped", failed, "total", len(records))
	}
	return nil
}

func (s *Store) insertTracesTx(ctx context.Context, records []*model.TraceSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO traces
		(trace_id, duration_ms, root_name, has_error) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.TraceID, r.DurationMS, r.Name, r.HasError); err != nil {
			return fmt.Errorf("trace insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
