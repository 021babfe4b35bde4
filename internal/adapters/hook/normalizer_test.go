package hook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigia/internal/domain"
)

func newTestNormalizer() *Normalizer {
	n := NewNormalizer()
	n.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return n
}

func TestNormalizeCurrentShape(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(map[string]any{
		"session_id": "sess-1",
		"name":       "Bash",
		"start_time": "2026-08-30T10:15:00Z",
		"input_data": map[string]any{"command": "ls -la"},
		"attributes": map[string]any{"hook_type": "PreToolUse"},
	})

	assert.Equal(t, "sess-1", span.SessionID)
	assert.Equal(t, "Bash", span.ToolName)
	assert.Equal(t, domain.HookPreToolUse, span.HookType)
	assert.Equal(t, domain.StatusInProgress, span.Status)
	assert.Equal(t, domain.KindTool, span.Kind)
	assert.Equal(t, "ls -la", span.ToolInput["command"])
	assert.Equal(t, time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC), span.Timestamp)
	assert.NotEmpty(t, span.SpanID)
	assert.Nil(t, span.EndTime)
}

func TestNormalizeLegacyShape(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(map[string]any{
		"session_id": "sess-1",
		"tool_name":  "Bash",
		"timestamp":  "2026-08-30T10:15:00Z",
		"tool_input": map[string]any{"command": "ls -la"},
		"hook_type":  "pre",
	})

	assert.Equal(t, "sess-1", span.SessionID)
	assert.Equal(t, "Bash", span.ToolName)
	assert.Equal(t, domain.HookPreToolUse, span.HookType)
	assert.Equal(t, domain.StatusInProgress, span.Status)
	assert.Equal(t, "ls -la", span.ToolInput["command"])
	assert.Equal(t, time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC), span.Timestamp)
}

func TestNormalizeShapesAreEquivalent(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	current := n.Normalize(map[string]any{
		"session_id": "sess-1",
		"name":       "Edit",
		"start_time": "2026-08-30T10:15:00Z",
		"input_data": map[string]any{"file_path": "/tmp/a.go"},
		"attributes": map[string]any{"hook_type": "post"},
	})
	legacy := n.Normalize(map[string]any{
		"session_id": "sess-1",
		"tool_name":  "Edit",
		"timestamp":  "2026-08-30T10:15:00Z",
		"tool_input": map[string]any{"file_path": "/tmp/a.go"},
		"hook_type":  "post",
	})

	assert.Equal(t, current.SessionID, legacy.SessionID)
	assert.Equal(t, current.ToolName, legacy.ToolName)
	assert.Equal(t, current.HookType, legacy.HookType)
	assert.Equal(t, current.Status, legacy.Status)
	assert.Equal(t, current.Kind, legacy.Kind)
	assert.Equal(t, current.Timestamp, legacy.Timestamp)
	assert.Equal(t, current.ToolInput, legacy.ToolInput)
}

func TestNormalizeWithoutHookType(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(map[string]any{
		"session_id": "sess-1",
		"tool_name":  "Read",
		"tool_input": map[string]any{"file_path": "/tmp/x"},
	})

	assert.Equal(t, "Read", span.ToolName)
	assert.Equal(t, "", span.HookType)
	assert.Equal(t, "", span.Attributes["hook_type"])
	assert.Equal(t, "/tmp/x", span.ToolInput["file_path"])
	assert.Equal(t, domain.StatusOK, span.Status)
}

func TestNormalizePayloadCoercion(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  map[string]any
	}{
		{name: "map passes through", input: map[string]any{"k": "v"}, want: map[string]any{"k": "v"}},
		{name: "string wraps under value", input: "hello", want: map[string]any{"value": "hello"}},
		{name: "nil becomes empty", input: nil, want: map[string]any{}},
		{name: "number is stringified", input: float64(42), want: map[string]any{"value": "42"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePayload(tt.input))
		})
	}
}

func TestNormalizeKindClassification(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	tests := []struct {
		tool string
		want domain.SpanKind
	}{
		{tool: "Task", want: domain.KindAgent},
		{tool: "AskUserQuestion", want: domain.KindUserInput},
		{tool: "mcp__github__get_issue", want: domain.KindTool},
		{tool: "Bash", want: domain.KindTool},
		{tool: "SomethingNew", want: domain.KindTool},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			span := n.Normalize(map[string]any{"session_id": "s", "tool_name": tt.tool})
			assert.Equal(t, tt.want, span.Kind)
		})
	}
}

func TestNormalizeSessionFallbackChain(t *testing.T) {
	n := newTestNormalizer()

	t.Run("explicit session id wins", func(t *testing.T) {
		t.Setenv("VIGIA_SESSION_ID", "env-sess")
		span := n.Normalize(map[string]any{"session_id": "explicit", "tool_name": "Bash"})
		assert.Equal(t, "explicit", span.SessionID)
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv("VIGIA_SESSION_ID", "env-sess")
		span := n.Normalize(map[string]any{"tool_name": "Bash"})
		assert.Equal(t, "env-sess", span.SessionID)
	})

	t.Run("correlation id prefix", func(t *testing.T) {
		t.Setenv("VIGIA_SESSION_ID", "")
		span := n.Normalize(map[string]any{
			"tool_name": "Bash",
			"trace_id":  "abcdef1234567890",
		})
		assert.Equal(t, "abcdef12", span.SessionID)
	})

	t.Run("unknown as last resort", func(t *testing.T) {
		t.Setenv("VIGIA_SESSION_ID", "")
		span := n.Normalize(map[string]any{"tool_name": "Bash"})
		assert.Equal(t, domain.UnknownName, span.SessionID)
	})
}

func TestNormalizeErrorStatus(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(map[string]any{
		"session_id":    "sess-1",
		"tool_name":     "Bash",
		"hook_type":     "post",
		"error_message": "command not found",
	})

	assert.Equal(t, domain.StatusError, span.Status)
	assert.Equal(t, "command not found", span.Error)
}

func TestNormalizePreEventWithErrorStaysInProgress(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	// The phase decides: an error field on the PRE side never flips status
	span := n.Normalize(map[string]any{
		"session_id": "sess-1",
		"tool_name":  "Bash",
		"hook_type":  "pre",
		"error":      "something",
	})

	assert.Equal(t, domain.StatusInProgress, span.Status)
	assert.Equal(t, "something", span.Error)
}

func TestNormalizePostSide(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(map[string]any{
		"session_id": "sess-1",
		"tool_name":  "Bash",
		"hook_type":  "post",
		"timestamp":  "2026-08-30T10:15:00Z",
		"end_time":   "2026-08-30T10:15:02Z",
	})

	require.NotNil(t, span.EndTime)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 15, 2, 0, time.UTC), *span.EndTime)
	require.NotNil(t, span.DurationMS)
	assert.Equal(t, float64(2000), *span.DurationMS)
}

func TestNormalizeExplicitDuration(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(map[string]any{
		"session_id":  "sess-1",
		"tool_name":   "Bash",
		"hook_type":   "post",
		"duration_ms": float64(1234.5),
	})

	require.NotNil(t, span.DurationMS)
	assert.Equal(t, 1234.5, *span.DurationMS)
}

func TestNormalizeUsageExtraction(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(map[string]any{
		"session_id": "sess-1",
		"tool_name":  "Task",
		"usage": map[string]any{
			"input_tokens":  float64(1000),
			"output_tokens": float64(500),
			"model":         "claude-sonnet-4-20250514",
		},
	})

	require.NotNil(t, span.Usage)
	assert.Equal(t, int64(1000), span.Usage.InputTokens)
	assert.Equal(t, int64(500), span.Usage.OutputTokens)
	assert.Equal(t, "claude-sonnet-4-20250514", span.Usage.Model)
	assert.Greater(t, span.Usage.Cost, 0.0)
}

func TestNormalizeNoUsage(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(map[string]any{"session_id": "sess-1", "tool_name": "Bash"})
	assert.Nil(t, span.Usage)
}

func TestNormalizeEmptyPayload(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(nil)

	assert.Equal(t, domain.UnknownName, span.ToolName)
	assert.Equal(t, domain.UnknownName, span.SessionID)
	assert.NotEmpty(t, span.SpanID)
	assert.Equal(t, n.now(), span.Timestamp)
	assert.NotNil(t, span.ToolInput)
	assert.NotNil(t, span.ToolOutput)
}

func TestNormalizeUnixTimestamp(t *testing.T) {
	t.Setenv("VIGIA_SESSION_ID", "")
	n := newTestNormalizer()

	span := n.Normalize(map[string]any{
		"session_id": "sess-1",
		"tool_name":  "Bash",
		"timestamp":  float64(1756550100),
	})

	assert.Equal(t, time.Unix(1756550100, 0).UTC(), span.Timestamp)
}
