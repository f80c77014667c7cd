package logparse

import (
	"regexp"
	"strings"
)

// SeverityRegex matches common severity levels in log text.
var SeverityRegex = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL|PANIC)\b`)

// NormalizeSeverity converts various severity level formats to the
// canonical all-caps labels: DEBUG, INFO, WARNING, ERROR, CRITICAL.
func NormalizeSeverity(severity string) string {
	normalized := strings.ToUpper(strings.TrimSpace(severity))

	switch normalized {
	case "TRACE", "TRAC", "TRC", "DEBUG", "DEBU", "DBG", "DEB":
		return "DEBUG"
	case "INFO", "INFORMATION", "INF":
		return "INFO"
	case "WARN", "WARNING", "WRNG", "WRN":
		return "WARNING"
	case "ERROR", "ERR", "ERRO":
		return "ERROR"
	case "FATAL", "FATL", "FTL", "CRITICAL", "CRIT", "CRT":
		return "CRITICAL"
	case "PANIC", "PNC":
		return "CRITICAL"
	default:
		if len(normalized) >= 4 {
			prefix := normalized[:4]
			switch prefix {
			case "INFO":
				return "INFO"
			case "WARN":
				return "WARNING"
			case "ERRO":
				return "ERROR"
			case "DEBU", "TRAC":
				return "DEBUG"
			case "FATA", "CRIT":
				return "CRITICAL"
			}
		}
		return "INFO"
	}
}

// ExtractSeverityFromText extracts a severity level from log message text.
func ExtractSeverityFromText(message string) string {
	matches := SeverityRegex.FindStringSubmatch(message)
	if len(matches) > 1 {
		return NormalizeSeverity(matches[1])
	}
	return "INFO"
}

// IsErrorSeverity reports whether the label counts toward error patterns.
func IsErrorSeverity(severity string) bool {
	switch NormalizeSeverity(severity) {
	case "ERROR", "CRITICAL":
		return true
	}
	return false
}

// SeverityFromOTELNumber maps an OTLP severity number to a canonical label.
func SeverityFromOTELNumber(number int) string {
	switch {
	case number >= 1 && number <= 8:
		return "DEBUG"
	case number >= 9 && number <= 12:
		return "INFO"
	case number >= 13 && number <= 16:
		return "WARNING"
	case number >= 17 && number <= 20:
		return "ERROR"
	case number >= 21 && number <= 24:
		return "CRITICAL"
	default:
		return ""
	}
}
