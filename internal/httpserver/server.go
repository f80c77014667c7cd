// Package httpserver exposes the engine's HTTP API: ingestion, the
// three analysis operations, store stats, and Prometheus metrics.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinytelemetry/distill/internal/analysis"
	"github.com/tinytelemetry/distill/internal/ingest"
	"github.com/tinytelemetry/distill/internal/metrics"
	"github.com/tinytelemetry/distill/internal/model"
)

// AnalysisAPI is the narrow analysis contract required by the HTTP API.
type AnalysisAPI interface {
	Patterns(ctx context.Context, w analysis.Window, maxPatterns int) (model.PatternSummary, error)
	Drift(ctx context.Context, baseline, comparison analysis.Window, threshold float64) (model.DriftReport, error)
	Exemplars(ctx context.Context, preferErrors bool, minSampleSize int) (*model.ExemplarReport, error)
	StoreOverview(ctx context.Context) (analysis.Overview, error)
}

// TraceSink accepts trace summaries for buffered insertion.
type TraceSink interface {
	Add(record *model.TraceSummary)
}

// Server provides the HTTP API for ingestion and analysis.
type Server struct {
	addr      string
	analysis  AnalysisAPI
	processor ingest.EnvelopeProcessor
	traces    TraceSink
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, api AnalysisAPI, processor ingest.EnvelopeProcessor, traces TraceSink) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		analysis:  api,
		processor: processor,
		traces:    traces,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/stats", s.handleStats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/api/ingest/logs", s.handleIngestLogs)
	r.POST("/api/ingest/traces", s.handleIngestTraces)

	r.POST("/api/analysis/patterns", s.handlePatterns)
	r.POST("/api/analysis/drift", s.handleDrift)
	r.POST("/api/analysis/exemplars", s.handleExemplars)

	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Handler:           s.router(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	overview, err := s.analysis.StoreOverview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read store stats"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) handleIngestLogs(c *gin.Context) {
	var req struct {
		Source string   `json:"source"`
		Lines  []string `json:"lines" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing lines field"})
		return
	}
	if req.Source == "" {
		req.Source = "http"
	}

	accepted := 0
	for _, line := range req.Lines {
		result := s.processor.ProcessEnvelope(model.IngestEnvelope{Source: req.Source, Line: line})
		if result != nil {
			accepted += len(result.Entries)
		}
	}

	metrics.CountLogsIngested(req.Source, accepted)
	c.JSON(http.StatusAccepted, gin.H{
		"received": len(req.Lines),
		"accepted": accepted,
	})
}

func (s *Server) handleIngestTraces(c *gin.Context) {
	var req struct {
		Traces []model.TraceSummary `json:"traces" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing traces field"})
		return
	}

	accepted := 0
	for i := range req.Traces {
		if req.Traces[i].TraceID == "" {
			continue
		}
		s.traces.Add(&req.Traces[i])
		accepted++
	}

	metrics.CountTracesIngested(accepted)
	c.JSON(http.StatusAccepted, gin.H{
		"received": len(req.Traces),
		"accepted": accepted,
	})
}

type windowRequest struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

func (w windowRequest) valid() bool {
	return w.End.After(w.Start)
}

func (w windowRequest) window() analysis.Window {
	return analysis.Window{Start: w.Start, End: w.End}
}

func (s *Server) handlePatterns(c *gin.Context) {
	var req struct {
		windowRequest
		MaxPatterns int `json:"max_patterns"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window requires start and end with end after start"})
		return
	}

	summary, err := s.analysis.Patterns(c.Request.Context(), req.window(), req.MaxPatterns)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleDrift(c *gin.Context) {
	var req struct {
		Baseline   windowRequest `json:"baseline" binding:"required"`
		Comparison windowRequest `json:"comparison" binding:"required"`
		Threshold  float64       `json:"threshold"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !req.Baseline.valid() || !req.Comparison.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "baseline and comparison windows require start and end with end after start"})
		return
	}

	report, err := s.analysis.Drift(c.Request.Context(), req.Baseline.window(), req.Comparison.window(), req.Threshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleExemplars(c *gin.Context) {
	var req struct {
		PreferErrors  bool `json:"prefer_errors"`
		MinSampleSize int  `json:"min_sample_size"`
	}
	// An empty body selects the defaults.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	report, err := s.analysis.Exemplars(c.Request.Context(), req.PreferErrors, req.MinSampleSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
