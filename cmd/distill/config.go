package main

import "time"

const (
	defaultBindHost            = "127.0.0.1"
	defaultTCPPort             = 4000
	defaultAPIPort             = 3000
	defaultOTLPPort            = 4317
	defaultMuxBufferSize       = DefaultMuxBuffer
	defaultQueryTimeout        = 30 * time.Second
	defaultInsertBatchSize     = 2000
	defaultInsertFlushInterval = 100 * time.Millisecond
	defaultInsertFlushQueue    = 64
	defaultRetentionDays       = 30 // 0 = disabled
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Host                string        `mapstructure:"host"`
	Processor           string        `mapstructure:"processor"`
	TCPEnabled          bool          `mapstructure:"tcp-enabled"`
	TCPPort             int           `mapstructure:"tcp-port"`
	TCPAddr             string        `mapstructure:"tcp-addr"`
	APIEnabled          bool          `mapstructure:"api-enabled"`
	APIPort             int           `mapstructure:"api-port"`
	APIAddr             string        `mapstructure:"api-addr"`
	OTLPEnabled         bool          `mapstructure:"otlp-enabled"`
	OTLPPort            int           `mapstructure:"otlp-port"`
	OTLPAddr            string        `mapstructure:"otlp-addr"`
	MuxBufferSize       int           `mapstructure:"mux-buffer-size"`
	DBPath              string        `mapstructure:"db-path"`
	QueryTimeout        time.Duration `mapstructure:"query-timeout"`
	InsertBatchSize     int           `mapstructure:"insert-batch-size"`
	InsertFlushInterval time.Duration `mapstructure:"insert-flush-interval"`
	InsertFlushQueue    int           `mapstructure:"insert-flush-queue-size"`
	Retention           int           `mapstructure:"retention-days"`
	MaskRulesPath       string        `mapstructure:"mask-rules"`
	MaxPatterns         int           `mapstructure:"max-patterns"`
	WindowLimit         int           `mapstructure:"window-limit"`
	DriftThreshold      float64       `mapstructure:"drift-threshold"`
	LogLevel            string        `mapstructure:"log-level"`
	LogFormat           string        `mapstructure:"log-format"`
	ConfigPath          string        `mapstructure:"-"` // not from config file
}
