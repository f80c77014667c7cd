// Package ingest turns raw log lines of heterogeneous shapes into
// canonical entries.
//
// Extraction is a chain of transformers tried against every payload.
// Each transformer reports a confidence score for its interpretation
// and the highest-confidence result wins; ties keep the earlier
// transformer. The chain order is fixed: OTLP-shaped JSON, audit-style
// JSON, generic structured JSON, plain text.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/distill/internal/logparse"
	"github.com/tinytelemetry/distill/internal/model"
	"github.com/tinytelemetry/distill/internal/timestamp"
)

// Transformer confidence levels. Values only need a total order; the
// gaps leave room for payload-dependent adjustment.
const (
	confidenceOTLPEnvelope = 1.0
	confidenceOTLPRecord   = 0.95
	confidenceAudit        = 0.9
	confidenceStructured   = 0.8
	confidenceBareJSON     = 0.4
	confidencePlainText    = 0.1
)

// Transformer attempts to interpret one raw payload as log entries,
// reporting how confident it is. Zero confidence means "not mine".
type Transformer interface {
	Name() string
	Transform(line string) ([]*model.LogEntry, float64)
}

// Extractor runs the transformer chain over raw payloads.
type Extractor struct {
	transformers []Transformer
}

// NewExtractor creates an Extractor with the full chain.
func NewExtractor() *Extractor {
	parser := timestamp.NewParser()
	return &Extractor{
		transformers: []Transformer{
			&otlpJSONTransformer{},
			&auditJSONTransformer{parser: parser},
			&structuredJSONTransformer{parser: parser},
			&plainTextTransformer{parser: parser},
		},
	}
}

// Extract converts one payload into entries using the
// highest-confidence transformer. The plain-text transformer accepts
// everything, so the result is never empty for a non-empty line.
func (e *Extractor) Extract(line string) []*model.LogEntry {
	var (
		best      []*model.LogEntry
		bestScore float64
	)
	for _, tr := range e.transformers {
		entries, score := tr.Transform(line)
		if len(entries) > 0 && score > bestScore {
			best = entries
			bestScore = score
		}
	}
	return best
}

// otlpJSONTransformer handles the OTLP/JSON log data model: full
// resourceLogs envelopes, bare scopeLogs/logRecords fragments, and
// single log-record objects.
type otlpJSONTransformer struct{}

func (t *otlpJSONTransformer) Name() string { return "otlp_json" }

func (t *otlpJSONTransformer) Transform(line string) ([]*model.LogEntry, float64) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, 0
	}

	if resourceLogs, ok := raw["resourceLogs"].([]interface{}); ok {
		var entries []*model.LogEntry
		for _, item := range resourceLogs {
			rl, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			inherited := otlpResourceAttributes(rl["resource"])
			entries = append(entries, t.scopeLogs(rl["scopeLogs"], inherited, line)...)
		}
		return entries, confidenceOTLPEnvelope
	}

	if _, ok := raw["scopeLogs"]; ok {
		inherited := otlpResourceAttributes(raw["resource"])
		return t.scopeLogs(raw["scopeLogs"], inherited, line), confidenceOTLPEnvelope
	}

	if _, ok := raw["logRecords"]; ok {
		inherited := otlpResourceAttributes(raw["resource"])
		return t.logRecords(raw["logRecords"], inherited, line), confidenceOTLPEnvelope
	}

	if isOTLPLogRecord(raw) {
		entry := t.logRecord(raw, nil, line)
		if entry == nil {
			return nil, 0
		}
		return []*model.LogEntry{entry}, confidenceOTLPRecord
	}

	return nil, 0
}

func (t *otlpJSONTransformer) scopeLogs(value interface{}, inherited map[string]string, line string) []*model.LogEntry {
	scopeLogs, ok := value.([]interface{})
	if !ok {
		return nil
	}

	var entries []*model.LogEntry
	for _, item := range scopeLogs {
		sl, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		attrs := cloneAttributes(inherited)
		if scope, ok := sl["scope"].(map[string]interface{}); ok {
			if name := stringField(scope, "name"); name != "" {
				attrs["otel.scope.name"] = name
			}
			mergeAttributes(attrs, otlpAttributes(scope["attributes"]))
		}

		entries = append(entries, t.logRecords(sl["logRecords"], attrs, line)...)
	}
	return entries
}

func (t *otlpJSONTransformer) logRecords(value interface{}, inherited map[string]string, line string) []*model.LogEntry {
	records, ok := value.([]interface{})
	if !ok {
		return nil
	}

	entries := make([]*model.LogEntry, 0, len(records))
	for _, item := range records {
		record, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if entry := t.logRecord(record, inherited, line); entry != nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

func (t *otlpJSONTransformer) logRecord(raw map[string]interface{}, inherited map[string]string, line string) *model.LogEntry {
	attrs := cloneAttributes(inherited)
	mergeAttributes(attrs, otlpAttributes(raw["attributes"]))

	if traceID := stringField(raw, "traceId"); traceID != "" {
		attrs["trace.id"] = traceID
	}
	if spanID := stringField(raw, "spanId"); spanID != "" {
		attrs["span.id"] = spanID
	}

	message := otlpAnyValue(raw["body"])
	if message == "" {
		message = line
	}

	severity := stringField(raw, "severityText")
	if severity == "" {
		if n := intField(raw["severityNumber"]); n > 0 {
			severity = logparse.SeverityFromOTELNumber(n)
		}
	}
	if severity == "" {
		severity = model.SeverityInfo
	}

	var ts time.Time
	for _, key := range []string{"timeUnixNano", "observedTimeUnixNano"} {
		if n := intField(raw[key]); n > 0 {
			ts = time.Unix(0, int64(n))
			break
		}
	}

	return &model.LogEntry{
		Timestamp:    ts,
		Severity:     logparse.NormalizeSeverity(severity),
		Message:      sanitizeMessage(message),
		RawLine:      line,
		ResourceType: resourceTypeFrom(attrs),
		Service:      serviceFrom(attrs),
		Hostname:     hostnameFrom(attrs),
		Attributes:   attrs,
	}
}

// auditJSONTransformer handles audit-style payloads: a protoPayload
// object describing who called what, plus a typed resource block.
type auditJSONTransformer struct {
	parser *timestamp.Parser
}

func (t *auditJSONTransformer) Name() string { return "audit_json" }

func (t *auditJSONTransformer) Transform(line string) ([]*model.LogEntry, float64) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, 0
	}

	payload, ok := raw["protoPayload"].(map[string]interface{})
	if !ok {
		return nil, 0
	}

	method := stringField(payload, "methodName")
	resourceName := stringField(payload, "resourceName")

	message := ""
	if status, ok := payload["status"].(map[string]interface{}); ok {
		message = stringField(status, "message")
	}
	if message == "" {
		switch {
		case method != "" && resourceName != "":
			message = method + " " + resourceName
		case method != "":
			message = method
		default:
			message = line
		}
	}

	attrs := map[string]string{}
	if method != "" {
		attrs["audit.method"] = method
	}
	if auth, ok := payload["authenticationInfo"].(map[string]interface{}); ok {
		if principal := stringField(auth, "principalEmail"); principal != "" {
			attrs["audit.principal"] = principal
		}
	}

	resourceType := ""
	if resource, ok := raw["resource"].(map[string]interface{}); ok {
		resourceType = stringField(resource, "type")
	}

	var ts time.Time
	if v, ok := raw["timestamp"]; ok {
		ts, _ = t.parser.ParseTimestamp(v)
	}

	severity := stringField(raw, "severity")
	if severity == "" {
		severity = model.SeverityInfo
	}

	return []*model.LogEntry{{
		Timestamp:    ts,
		Severity:     logparse.NormalizeSeverity(severity),
		Message:      sanitizeMessage(message),
		RawLine:      line,
		ResourceType: resourceType,
		Service:      stringField(raw, "logName"),
		Attributes:   attrs,
	}}, confidenceAudit
}

// structuredJSONTransformer handles generic structured logging output.
// Field lookup follows an explicit priority order per field rather
// than guessing among arbitrary keys.
type structuredJSONTransformer struct {
	parser *timestamp.Parser
}

var (
	messageFields  = []string{"message", "msg", "log", "text", "event", "body"}
	severityFields = []string{"severity", "level", "log_level", "loglevel"}
	timeFields     = []string{"timestamp", "time", "ts", "@timestamp", "datetime"}
	serviceFields  = []string{"service.name", "service", "service_name", "app", "application"}
	hostFields     = []string{"host.name", "hostname", "host"}
	resourceFields = []string{"resource.type", "resource_type", "resource"}
)

func (t *structuredJSONTransformer) Name() string { return "structured_json" }

func (t *structuredJSONTransformer) Transform(line string) ([]*model.LogEntry, float64) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, 0
	}
	if len(raw) == 0 {
		return nil, 0
	}

	confidence := confidenceStructured
	message := stringField(raw, messageFields...)
	if message == "" {
		// JSON, but nothing that looks like a message field. Keep the
		// whole payload as the message at reduced confidence.
		message = line
		confidence = confidenceBareJSON
	}

	severity := stringField(raw, severityFields...)
	if severity == "" {
		severity = logparse.ExtractSeverityFromText(message)
	}

	var ts time.Time
	for _, key := range timeFields {
		if v, ok := raw[key]; ok {
			if parsed, found := t.parser.ParseTimestamp(v); found {
				ts = parsed
				break
			}
		}
	}

	attrs := map[string]string{}
	for k, v := range raw {
		if isReservedField(k) {
			continue
		}
		if s := stringifyScalar(v); s != "" {
			attrs[k] = s
		}
	}

	return []*model.LogEntry{{
		Timestamp:    ts,
		Severity:     logparse.NormalizeSeverity(severity),
		Message:      sanitizeMessage(message),
		RawLine:      line,
		ResourceType: stringField(raw, resourceFields...),
		Service:      stringField(raw, serviceFields...),
		Hostname:     stringField(raw, hostFields...),
		Attributes:   attrs,
	}}, confidence
}

func isReservedField(key string) bool {
	for _, group := range [][]string{
		messageFields, severityFields, timeFields, serviceFields, hostFields, resourceFields,
	} {
		for _, f := range group {
			if key == f {
				return true
			}
		}
	}
	return false
}

// plainTextTransformer accepts anything: leading timestamp and severity
// token are recognized, the rest is the message.
type plainTextTransformer struct {
	parser *timestamp.Parser
}

func (t *plainTextTransformer) Name() string { return "plain_text" }

func (t *plainTextTransformer) Transform(line string) ([]*model.LogEntry, float64) {
	if strings.TrimSpace(line) == "" {
		return nil, 0
	}

	result := t.parser.ParseFromText(line)
	return []*model.LogEntry{{
		Timestamp: result.Timestamp,
		Severity:  logparse.ExtractSeverityFromText(line),
		Message:   sanitizeMessage(t.parser.ExtractLogMessage(line)),
		RawLine:   line,
	}}, confidencePlainText
}

func otlpResourceAttributes(value interface{}) map[string]string {
	resource, ok := value.(map[string]interface{})
	if !ok {
		return map[string]string{}
	}
	return otlpAttributes(resource["attributes"])
}

func otlpAttributes(value interface{}) map[string]string {
	out := map[string]string{}
	attrs, ok := value.([]interface{})
	if !ok {
		return out
	}
	for _, item := range attrs {
		attr, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		key := stringField(attr, "key")
		if key == "" {
			continue
		}
		if val := otlpAnyValue(attr["value"]); val != "" {
			out[key] = val
		}
	}
	return out
}

func otlpAnyValue(value interface{}) string {
	anyValue, ok := value.(map[string]interface{})
	if !ok {
		return stringifyScalar(value)
	}

	for _, key := range []string{"stringValue", "boolValue", "intValue", "doubleValue", "bytesValue"} {
		if v, ok := anyValue[key]; ok {
			return stringifyScalar(v)
		}
	}

	if arrayValue, ok := anyValue["arrayValue"].(map[string]interface{}); ok {
		if vals, ok := arrayValue["values"].([]interface{}); ok {
			parts := make([]string, 0, len(vals))
			for _, v := range vals {
				if part := otlpAnyValue(v); part != "" {
					parts = append(parts, part)
				}
			}
			return strings.Join(parts, ",")
		}
	}

	return stringifyScalar(anyValue)
}

func isOTLPLogRecord(raw map[string]interface{}) bool {
	for _, key := range []string{
		"timeUnixNano", "observedTimeUnixNano", "severityNumber", "severityText", "traceId", "spanId",
	} {
		if _, ok := raw[key]; ok {
			return true
		}
	}
	_, hasBody := raw["body"]
	_, hasAttrs := raw["attributes"]
	return hasBody && hasAttrs
}

func serviceFrom(attrs map[string]string) string {
	for _, key := range []string{"service.name", "service", "service_name", "app"} {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}

func hostnameFrom(attrs map[string]string) string {
	for _, key := range []string{"host.name", "hostname", "host"} {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}

func resourceTypeFrom(attrs map[string]string) string {
	for _, key := range []string{"resource.type", "cloud.platform", "k8s.object.kind"} {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}

func cloneAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func mergeAttributes(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

// stringField returns the first non-empty scalar among the given keys.
func stringField(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s := stringifyScalar(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func intField(value interface{}) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}

func stringifyScalar(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, bool, int, int64, uint64:
		return fmt.Sprintf("%v", v)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return ""
}

func sanitizeMessage(message string) string {
	clean := strings.ReplaceAll(message, "\t", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	clean = strings.ReplaceAll(clean, "\r", " ")
	return strings.TrimSpace(clean)
}
