package hook

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"vigia/internal/domain"
)

// Normalizer reconciles raw hook payloads into canonical spans. Two
// historical shapes co-occur in real archives: the current one
// (name/start_time/input_data, hook_type nested under attributes) and the
// legacy one (tool_name/timestamp/tool_input, hook_type at the top level).
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{now: func() time.Time { return time.Now().UTC() }}
}

// fieldSources lists, per logical field, the raw keys to try in order.
// Current-shape keys come first, legacy keys second.
var fieldSources = map[string][]string{
	"name":       {"name", "tool_name"},
	"timestamp":  {"start_time", "timestamp"},
	"input":      {"input_data", "tool_input"},
	"output":     {"output_data", "tool_output"},
	"error":      {"error", "error_message"},
	"workingDir": {"working_dir", "cwd"},
}

// Normalize converts a raw hook payload into a canonical span. It is total:
// malformed or missing fields get documented defaults and never an error.
func (n *Normalizer) Normalize(raw map[string]any) domain.Span {
	if raw == nil {
		raw = map[string]any{}
	}

	attrs := copyMap(asMap(raw["attributes"]))

	hookType := expandHookType(firstString(raw["hook_type"], attrs["hook_type"], attrs["hook"]))
	errMsg := resolveString(raw, "error")

	traceID := stringValue(raw["trace_id"])
	spanID := stringValue(raw["span_id"])
	if spanID == "" {
		spanID = uuid.New().String()
	}

	sessionID := resolveSessionID(raw, traceID)
	name := resolveString(raw, "name")
	if name == "" {
		name = domain.UnknownName
	}

	timestamp := n.resolveTimestamp(raw)
	workingDir := resolveString(raw, "workingDir")
	if workingDir == "" {
		workingDir = stringValue(attrs["working_dir"])
	}

	// The phase always lands in attributes, empty string included
	attrs["hook_type"] = hookType
	if workingDir != "" {
		attrs["working_dir"] = workingDir
	}

	span := domain.Span{
		SpanID:     spanID,
		TraceID:    traceID,
		ParentID:   stringValue(raw["parent_id"]),
		SessionID:  sessionID,
		Timestamp:  timestamp,
		HookType:   hookType,
		ToolName:   name,
		Kind:       domain.KindForTool(name),
		Status:     domain.StatusFor(hookType, errMsg),
		ToolInput:  normalizePayload(resolveAny(raw, "input")),
		ToolOutput: normalizePayload(resolveAny(raw, "output")),
		Attributes: attrs,
		Error:      errMsg,
		WorkingDir: workingDir,
	}

	// End time and duration only make sense on the post side
	if domain.IsPost(hookType) {
		endTime := timestamp
		if parsed, ok := parseTime(stringValue(raw["end_time"])); ok {
			endTime = parsed
		}
		span.EndTime = &endTime

		if ms, ok := asFloat(raw["duration_ms"]); ok {
			span.DurationMS = &ms
		} else if span.EndTime.After(span.Timestamp) {
			ms := float64(span.EndTime.Sub(span.Timestamp).Milliseconds())
			span.DurationMS = &ms
		}
	}

	span.Usage = extractUsage(raw, attrs)

	return span
}

// resolveSessionID applies the session fallback chain: explicit session_id,
// environment override, correlation-id prefix, literal unknown.
func resolveSessionID(raw map[string]any, traceID string) string {
	if s := stringValue(raw["session_id"]); s != "" {
		return s
	}
	if s := os.Getenv("VIGIA_SESSION_ID"); s != "" {
		return s
	}
	if len(traceID) >= 8 {
		return traceID[:8]
	}
	if traceID != "" {
		return traceID
	}
	return domain.UnknownName
}

// resolveString tries each raw key registered for the logical field
func resolveString(raw map[string]any, field string) string {
	for _, key := range fieldSources[field] {
		if s := stringValue(raw[key]); s != "" {
			return s
		}
	}
	return ""
}

// resolveAny tries each raw key registered for the logical field
func resolveAny(raw map[string]any, field string) any {
	for _, key := range fieldSources[field] {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func (n *Normalizer) resolveTimestamp(raw map[string]any) time.Time {
	for _, key := range fieldSources["timestamp"] {
		if v, ok := raw[key]; ok {
			if t, ok := parseTime(stringValue(v)); ok {
				return t
			}
			if f, ok := asFloat(v); ok {
				// Numeric timestamps are unix seconds
				return time.Unix(int64(f), 0).UTC()
			}
		}
	}
	return n.now()
}

// expandHookType expands the abbreviated phase values used by older hooks
func expandHookType(hookType string) string {
	switch hookType {
	case "pre":
		return domain.HookPreToolUse
	case "post":
		return domain.HookPostToolUse
	default:
		return hookType
	}
}

// normalizePayload coerces any payload value to a uniform mapping: maps
// pass through, strings wrap under "value", nil becomes empty, everything
// else is stringified and wrapped.
func normalizePayload(v any) map[string]any {
	switch p := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return p
	case string:
		return map[string]any{"value": p}
	default:
		return map[string]any{"value": fmt.Sprint(p)}
	}
}

// extractUsage pulls optional token accounting out of the payload.
// Absence is normal and yields nil.
func extractUsage(raw map[string]any, attrs map[string]any) *domain.Usage {
	usageMap := asMap(raw["usage"])
	if usageMap == nil {
		usageMap = asMap(attrs["usage"])
	}
	if usageMap == nil {
		return nil
	}

	usage := domain.Usage{
		InputTokens:         intValue(usageMap["input_tokens"]),
		OutputTokens:        intValue(usageMap["output_tokens"]),
		CacheReadTokens:     intValue(usageMap["cache_read_tokens"]),
		CacheCreationTokens: intValue(usageMap["cache_creation_tokens"]),
		Model:               firstString(usageMap["model"], raw["model"], attrs["model"]),
	}
	usage.Cost = domain.CalculateCost(usage)
	return &usage
}

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func firstString(values ...any) string {
	for _, v := range values {
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func intValue(v any) int64 {
	if f, ok := asFloat(v); ok {
		return int64(f)
	}
	return 0
}
