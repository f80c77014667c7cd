// Package otlpserver runs a gRPC receiver for the OpenTelemetry
// logs and trace export services, converting incoming records into the
// engine's log entries and trace summaries.
package otlpserver

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"

	"github.com/tinytelemetry/distill/internal/logparse"
	"github.com/tinytelemetry/distill/internal/metrics"
	"github.com/tinytelemetry/distill/internal/model"
)

const sourceName = "otlp"

// LogSink accepts converted log entries for buffered insertion.
type LogSink interface {
	Add(record *model.LogEntry)
}

// TraceSink accepts converted trace summaries for buffered insertion.
type TraceSink interface {
	Add(record *model.TraceSummary)
}

// Server is the OTLP gRPC receiver. The logs and trace export
// services both name their RPC Export, so each is served by its own
// adapter type.
type Server struct {
	addr    string
	logger  *slog.Logger
	logs    LogSink
	traces  TraceSink
	grpcsrv *grpc.Server
}

// NewServer creates an OTLP receiver listening on addr.
func NewServer(addr string, logger *slog.Logger, logs LogSink, traces TraceSink) *Server {
	if addr == "" {
		addr = "0.0.0.0:4317"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:   addr,
		logger: logger,
		logs:   logs,
		traces: traces,
	}
}

// Start begins serving gRPC requests.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("otlp listen: %w", err)
	}

	s.grpcsrv = grpc.NewServer()
	collogspb.RegisterLogsServiceServer(s.grpcsrv, &logsService{srv: s})
	coltracepb.RegisterTraceServiceServer(s.grpcsrv, &traceService{srv: s})

	go func() {
		if err := s.grpcsrv.Serve(listener); err != nil {
			s.logger.Error("otlp grpc server stopped", "error", err)
		}
	}()

	s.logger.Info("otlp grpc receiver listening", "addr", s.addr)
	return nil
}

// Stop drains in-flight RPCs and shuts the server down.
func (s *Server) Stop() {
	if s.grpcsrv != nil {
		s.grpcsrv.GracefulStop()
	}
}

type logsService struct {
	collogspb.UnimplementedLogsServiceServer
	srv *Server
}

// Export implements the OTLP logs export service.
func (l *logsService) Export(_ context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	count := 0
	for _, rl := range req.GetResourceLogs() {
		resourceAttrs := attributesToMap(rl.GetResource().GetAttributes())
		for _, sl := range rl.GetScopeLogs() {
			for _, rec := range sl.GetLogRecords() {
				l.srv.logs.Add(convertLogRecord(rec, resourceAttrs))
				count++
			}
		}
	}

	metrics.CountLogsIngested(sourceName, count)
	l.srv.logger.Debug("otlp logs export", "records", count, "payload_bytes", proto.Size(req))
	return &collogspb.ExportLogsServiceResponse{}, nil
}

type traceService struct {
	coltracepb.UnimplementedTraceServiceServer
	srv *Server
}

// Export implements the OTLP trace export service.
func (t *traceService) Export(_ context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	summaries := summarizeTraces(req)
	for _, summary := range summaries {
		t.srv.traces.Add(summary)
	}
	metrics.CountTracesIngested(len(summaries))
	t.srv.logger.Debug("otlp traces export", "traces", len(summaries), "payload_bytes", proto.Size(req))
	return &coltracepb.ExportTraceServiceResponse{}, nil
}

func convertLogRecord(rec *logspb.LogRecord, resourceAttrs map[string]string) *model.LogEntry {
	attrs := make(map[string]string, len(resourceAttrs)+len(rec.GetAttributes()))
	for k, v := range resourceAttrs {
		attrs[k] = v
	}
	for k, v := range attributesToMap(rec.GetAttributes()) {
		attrs[k] = v
	}

	if id := rec.GetTraceId(); len(id) > 0 {
		attrs["trace.id"] = hex.EncodeToString(id)
	}
	if id := rec.GetSpanId(); len(id) > 0 {
		attrs["span.id"] = hex.EncodeToString(id)
	}

	severity := rec.GetSeverityText()
	if severity == "" {
		severity = logparse.SeverityFromOTELNumber(int(rec.GetSeverityNumber()))
	} else {
		severity = logparse.NormalizeSeverity(severity)
	}

	ts := rec.GetTimeUnixNano()
	if ts == 0 {
		ts = rec.GetObservedTimeUnixNano()
	}
	timestamp := time.Now()
	if ts > 0 {
		timestamp = time.Unix(0, int64(ts))
	}

	return &model.LogEntry{
		Timestamp:    timestamp,
		Severity:     severity,
		Message:      anyValueString(rec.GetBody()),
		Service:      resourceAttrs["service.name"],
		Hostname:     resourceAttrs["host.name"],
		ResourceType: resourceAttrs["resource.type"],
		Attributes:   attrs,
		Source:       sourceName,
	}
}

// summarizeTraces collapses the spans of each trace into one summary:
// the root span names the trace and sets its duration, any errored
// span marks the whole trace as errored.
func summarizeTraces(req *coltracepb.ExportTraceServiceRequest) []*model.TraceSummary {
	byID := make(map[string]*model.TraceSummary)
	rootSeen := make(map[string]bool)
	var order []string

	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				traceID := hex.EncodeToString(span.GetTraceId())
				if traceID == "" {
					continue
				}

				summary, ok := byID[traceID]
				if !ok {
					summary = &model.TraceSummary{TraceID: traceID}
					byID[traceID] = summary
					order = append(order, traceID)
				}

				isRoot := len(span.GetParentSpanId()) == 0
				durationMS := spanDurationMS(span)
				if isRoot || summary.Name == "" {
					summary.Name = span.GetName()
				}
				// The root span owns the trace duration; without one the
				// longest span stands in.
				if isRoot {
					summary.DurationMS = durationMS
					rootSeen[traceID] = true
				} else if !rootSeen[traceID] && durationMS > summary.DurationMS {
					summary.DurationMS = durationMS
				}
				if span.GetStatus().GetCode() == tracepb.Status_STATUS_CODE_ERROR {
					summary.HasError = true
				}
			}
		}
	}

	out := make([]*model.TraceSummary, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

func spanDurationMS(span *tracepb.Span) float64 {
	start, end := span.GetStartTimeUnixNano(), span.GetEndTimeUnixNano()
	if end <= start {
		return 0
	}
	return float64(end-start) / 1e6
}

func attributesToMap(kvs []*commonpb.KeyValue) map[string]string {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		if kv.GetKey() == "" {
			continue
		}
		out[kv.GetKey()] = anyValueString(kv.GetValue())
	}
	return out
}

func anyValueString(v *commonpb.AnyValue) string {
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_IntValue:
		return fmt.Sprintf("%d", val.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return fmt.Sprintf("%g", val.DoubleValue)
	case *commonpb.AnyValue_BoolValue:
		return fmt.Sprintf("%t", val.BoolValue)
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(val.BytesValue)
	default:
		return ""
	}
}
