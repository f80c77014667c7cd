package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseResult holds the outcome of scanning log text for a leading timestamp.
type ParseResult struct {
	Timestamp time.Time
	Found     bool
	Remaining string // text after the timestamp, trimmed
}

// Parser extracts timestamps from log text and arbitrary JSON values.
type Parser struct {
	prefixPatterns []prefixPattern
}

type prefixPattern struct {
	re      *regexp.Regexp
	layouts []string
}

// NewParser creates a Parser with the common log timestamp formats.
func NewParser() *Parser {
	return &Parser{
		prefixPatterns: []prefixPattern{
			{
				// ISO-8601 / RFC3339 with optional fraction and zone.
				re: regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}([.,]\d+)?(Z|[+-]\d{2}:?\d{2})?)`),
				layouts: []string{
					time.RFC3339Nano,
					time.RFC3339,
					"2006-01-02T15:04:05",
					"2006-01-02 15:04:05.999999999",
					"2006-01-02 15:04:05",
				},
			},
			{
				// Syslog style: Jan 15 10:30:45
				re:      regexp.MustCompile(`^([A-Z][a-z]{2} +\d{1,2} \d{2}:\d{2}:\d{2})`),
				layouts: []string{"Jan 2 15:04:05", "Jan  2 15:04:05"},
			},
			{
				// Time only: 10:30:45 or 10:30:45.123
				re:      regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}([.,]\d+)?)`),
				layouts: []string{"15:04:05.999999999", "15:04:05"},
			},
		},
	}
}

// ParseFromText scans the start of a log line for a timestamp.
// When none is found, Remaining carries the original text unchanged.
func (p *Parser) ParseFromText(text string) ParseResult {
	trimmed := strings.TrimSpace(text)

	for _, pat := range p.prefixPatterns {
		match := pat.re.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		candidate := strings.ReplaceAll(match[1], ",", ".")
		for _, layout := range pat.layouts {
			ts, err := time.Parse(layout, candidate)
			if err != nil {
				continue
			}
			// Formats without a year resolve against the current year.
			if ts.Year() == 0 {
				now := time.Now()
				ts = ts.AddDate(now.Year(), 0, 0)
			}
			return ParseResult{
				Timestamp: ts,
				Found:     true,
				Remaining: strings.TrimSpace(trimmed[len(match[1]):]),
			}
		}
	}

	return ParseResult{Remaining: text}
}

// ParseTimestamp converts a JSON-decoded value (string or number) to a time.
func (p *Parser) ParseTimestamp(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{
			time.RFC3339Nano,
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05.999999999",
			"2006-01-02 15:04:05",
		} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return parseUnixTimestamp(n), true
		}
		return time.Time{}, false
	case float64:
		return parseUnixTimestamp(v), true
	case int:
		return parseUnixTimestamp(float64(v)), true
	case int64:
		return parseUnixTimestamp(float64(v)), true
	case uint64:
		return parseUnixTimestamp(float64(v)), true
	default:
		return time.Time{}, false
	}
}

// ExtractLogMessage strips a leading timestamp and severity prefix,
// returning what remains as the message body.
func (p *Parser) ExtractLogMessage(text string) string {
	result := p.ParseFromText(text)
	msg := result.Remaining

	msg = severityPrefix.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return strings.TrimSpace(text)
	}
	return msg
}

var severityPrefix = regexp.MustCompile(`^[\[(]?(?i:TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|CRITICAL)[\])]?:?\s*`)

// parseUnixTimestamp guesses the unit from the magnitude: seconds up to
// 1e9, then milliseconds, microseconds, and nanoseconds past 1e15.
func parseUnixTimestamp(n float64) time.Time {
	switch {
	case n <= 0:
		return time.Time{}
	case n <= 1e9:
		return time.Unix(int64(n), 0)
	case n <= 1e12:
		return time.UnixMilli(int64(n))
	case n <= 1e15:
		return time.UnixMicro(int64(n))
	default:
		return time.Unix(0, int64(n))
	}
}
