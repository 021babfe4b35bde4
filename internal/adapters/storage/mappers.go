package storage

import (
	"encoding/json"

	"vigia/internal/domain"
)

// spanToModel converts a domain.Span to TraceModel (GORM). Structured
// fields are JSON-encoded; usage rides inside attributes.
func spanToModel(s domain.Span) TraceModel {
	attrs := s.Attributes
	if s.Usage != nil {
		attrs = make(map[string]any, len(s.Attributes)+1)
		for k, v := range s.Attributes {
			attrs[k] = v
		}
		attrs["usage"] = s.Usage
	}

	return TraceModel{
		Attributes: encodeJSON(attrs),
		DurationMS: s.DurationMS,
		EndTime:    s.EndTime,
		Error:      s.Error,
		HookType:   s.HookType,
		Kind:       string(s.Kind),
		ParentID:   s.ParentID,
		SessionID:  s.SessionID,
		SpanID:     s.SpanID,
		Status:     string(s.Status),
		Timestamp:  s.Timestamp,
		ToolInput:  encodeJSON(s.ToolInput),
		ToolName:   s.ToolName,
		ToolOutput: encodeJSON(s.ToolOutput),
		TraceID:    s.TraceID,
		WorkingDir: s.WorkingDir,
	}
}

// modelToSpan converts a TraceModel to domain.Span. Unknown enum strings
// fall back to TOOL/OK so old rows always reconstruct.
func modelToSpan(m TraceModel) domain.Span {
	attrs := decodeJSON(m.Attributes)

	span := domain.Span{
		SpanID:     m.SpanID,
		TraceID:    m.TraceID,
		ParentID:   m.ParentID,
		SessionID:  m.SessionID,
		Timestamp:  m.Timestamp,
		EndTime:    m.EndTime,
		HookType:   m.HookType,
		ToolName:   m.ToolName,
		Kind:       domain.ParseKind(m.Kind),
		Status:     domain.ParseStatus(m.Status),
		ToolInput:  decodeJSON(m.ToolInput),
		ToolOutput: decodeJSON(m.ToolOutput),
		Attributes: attrs,
		DurationMS: m.DurationMS,
		Error:      m.Error,
		WorkingDir: m.WorkingDir,
	}

	if raw, ok := attrs["usage"]; ok {
		if data, err := json.Marshal(raw); err == nil {
			var usage domain.Usage
			if err := json.Unmarshal(data, &usage); err == nil {
				span.Usage = &usage
			}
		}
	}

	return span
}

func encodeJSON(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeJSON(s string) map[string]any {
	if s == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}
