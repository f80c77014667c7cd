package model

// Shared defaults used by the server binary and the analysis service.
const (
	DefaultSignificanceThreshold = 0.5
	DefaultMinSampleSize         = 5
	DefaultMaxPatterns           = 20
	DefaultWindowLimit           = 50_000
	DefaultTracePoolLimit        = 200
)

// Severity labels the engine understands. Unknown labels pass through
// untouched; they only miss the error-pattern rollup.
const (
	SeverityDebug    = "DEBUG"
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)
