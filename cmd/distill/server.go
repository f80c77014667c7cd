package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/distill/internal/analysis"
	"github.com/tinytelemetry/distill/internal/duckdb"
	"github.com/tinytelemetry/distill/internal/httpserver"
	"github.com/tinytelemetry/distill/internal/ingest"
	"github.com/tinytelemetry/distill/internal/metrics"
	"github.com/tinytelemetry/distill/internal/otlpserver"
)

// runServer starts ingestion, storage, and the analysis API.
func runServer(cfg appConfig) error {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	bufferConf := duckdb.BufferConfig{
		BatchSize:      cfg.InsertBatchSize,
		FlushInterval:  cfg.InsertFlushInterval,
		FlushQueueSize: cfg.InsertFlushQueue,
		Logger:         logger,
	}
	logBuffer := duckdb.NewLogBuffer(store, bufferConf)
	defer logBuffer.Stop()
	traceBuffer := duckdb.NewTraceBuffer(store, bufferConf)
	defer traceBuffer.Stop()

	retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
		RetentionDays: cfg.Retention,
		Logger:        logger,
	})
	if retentionCleaner != nil {
		defer retentionCleaner.Stop()
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	analysisService, err := analysis.NewService(logger, store, analysis.Config{
		SignificanceThreshold: cfg.DriftThreshold,
		MaxPatterns:           cfg.MaxPatterns,
		WindowLimit:           cfg.WindowLimit,
		MaskRulesPath:         cfg.MaskRulesPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize analysis service: %w", err)
	}

	// Stream ingestion and the HTTP API keep separate processors: the
	// parse processor accumulates multi-line JSON and is not safe to
	// share across goroutines.
	streamProcessor, err := ingest.NewEnvelopeProcessor(cfg.Processor, logBuffer, "")
	if err != nil {
		return fmt.Errorf("failed to build processor: %w", err)
	}

	if cfg.APIEnabled {
		apiProcessor, err := ingest.NewEnvelopeProcessor(cfg.Processor, logBuffer, "http")
		if err != nil {
			return fmt.Errorf("failed to build api processor: %w", err)
		}
		apiServer := httpserver.NewServer(cfg.APIAddr, analysisService, apiProcessor, traceBuffer)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	if cfg.OTLPEnabled {
		otlpServer := otlpserver.NewServer(cfg.OTLPAddr, logger, logBuffer, traceBuffer)
		if err := otlpServer.Start(); err != nil {
			return fmt.Errorf("failed to start OTLP receiver: %w", err)
		}
		defer otlpServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now — not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	// Build input plugins and source multiplexer
	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: cfg.TCPEnabled,
		TCPAddr:    cfg.TCPAddr,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			logger.Error("input plugin failed to start", "plugin", plugin.Name(), "error", err)
			continue
		}
		sources = append(sources, src)
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, streamProcessor.Name())

	g, gctx := errgroup.WithContext(ctx)

	// Ingestion loop
	if mux.HasSources() {
		g.Go(func() error {
			for env := range mux.Lines() {
				result := streamProcessor.ProcessEnvelope(env)
				if result != nil {
					metrics.CountLogsIngested(env.Source, len(result.Entries))
				}
			}
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server loop exited", "error", err)
	}

	cancel()
	mux.Stop()

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)

	return nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printStartupBanner(cfg appConfig, processorName string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╦╗╦╔═╗╔╦╗╦╦  ╦
     ║║║╚═╗ ║ ║║  ║
    ═╩╝╩╚═╝ ╩ ╩╩═╝╩═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}

	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", dot, dim.Render("disabled")))
	}

	if cfg.OTLPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  OTLP gRPC      %s", check, cyan.Render(cfg.OTLPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  OTLP gRPC      %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Storage        %s", check, dim.Render(shortenPath(cfg.DBPath))))
	if cfg.Retention > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", check, dim.Render(fmt.Sprintf("%d days", cfg.Retention))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Runtime
	lines = append(lines, bold.Render("    Runtime"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Processor      %s", check, dim.Render(processorName)))

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
