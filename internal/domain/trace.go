package domain

import (
	"strings"
	"time"
)

// SpanKind categorizes what a span represents
type SpanKind string

const (
	KindTool      SpanKind = "TOOL"
	KindAgent     SpanKind = "AGENT"
	KindUserInput SpanKind = "USER_INPUT"
)

// SpanStatus is the execution state of a span
type SpanStatus string

const (
	StatusInProgress SpanStatus = "IN_PROGRESS"
	StatusOK         SpanStatus = "OK"
	StatusError      SpanStatus = "ERROR"
)

// Hook phases as reported by the agent's hook mechanism
const (
	HookPreToolUse  = "PreToolUse"
	HookPostToolUse = "PostToolUse"
)

// UnknownName is the fallback tool name when a raw event carries none
const UnknownName = "unknown"

// Span is the canonical record of one hook invocation.
// PRE and POST calls each produce their own span; they are never merged.
type Span struct {
	SpanID     string         `json:"span_id"`
	TraceID    string         `json:"trace_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	SessionID  string         `json:"session_id"`
	Timestamp  time.Time      `json:"timestamp"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
	HookType   string         `json:"hook_type"`
	ToolName   string         `json:"tool_name"`
	Kind       SpanKind       `json:"kind"`
	Status     SpanStatus     `json:"status"`
	ToolInput  map[string]any `json:"tool_input"`
	ToolOutput map[string]any `json:"tool_output"`
	Attributes map[string]any `json:"attributes"`
	DurationMS *float64       `json:"duration_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	WorkingDir string         `json:"working_dir,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
}

// toolKinds maps known tool names to their span kind.
// Unlisted names default to KindTool.
var toolKinds = map[string]SpanKind{
	"Bash":            KindTool,
	"Edit":            KindTool,
	"Glob":            KindTool,
	"Grep":            KindTool,
	"Read":            KindTool,
	"WebFetch":        KindTool,
	"WebSearch":       KindTool,
	"Write":           KindTool,
	"Task":            KindAgent,
	"AskUserQuestion": KindUserInput,
}

// KindForTool classifies a tool name into a span kind
func KindForTool(name string) SpanKind {
	if kind, ok := toolKinds[name]; ok {
		return kind
	}
	if strings.HasPrefix(name, "mcp__") {
		return KindTool
	}
	return KindTool
}

// ParseKind converts a stored string into a SpanKind, defaulting to TOOL
// for unknown values so old rows never fail reconstruction.
func ParseKind(s string) SpanKind {
	switch SpanKind(s) {
	case KindTool, KindAgent, KindUserInput:
		return SpanKind(s)
	default:
		return KindTool
	}
}

// ParseStatus converts a stored string into a SpanStatus, defaulting to OK
func ParseStatus(s string) SpanStatus {
	switch SpanStatus(s) {
	case StatusInProgress, StatusOK, StatusError:
		return SpanStatus(s)
	default:
		return StatusOK
	}
}

// StatusFor derives a span status from its hook type and error field.
// PRE spans are always in progress, error field or not; POST spans are an
// error iff the error field is set.
func StatusFor(hookType, errMsg string) SpanStatus {
	if hookType == HookPreToolUse {
		return StatusInProgress
	}
	if errMsg != "" {
		return StatusError
	}
	return StatusOK
}

// IsPost reports whether the hook type is the post-action side
func IsPost(hookType string) bool {
	return hookType == HookPostToolUse
}
