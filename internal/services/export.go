package services

import (
	"encoding/json"
	"fmt"
	"io"

	"vigia/internal/logging"
	"vigia/internal/ports"
)

// ExportOptions filters and transforms an export run
type ExportOptions struct {
	SessionID string
	Days      int
	Redact    bool
}

// ExportService writes archived spans back out as JSONL, optionally
// redacted through the tokenization collaborator
type ExportService struct {
	logs      ports.AppendLogReader
	tokenizer ports.Tokenizer
}

// NewExportService creates an ExportService
func NewExportService(logs ports.AppendLogReader, tokenizer ports.Tokenizer) *ExportService {
	return &ExportService{logs: logs, tokenizer: tokenizer}
}

// Export writes matching spans to w, one JSON line each, returning the
// number of lines written. Redaction is fail-open: a tokenizer error keeps
// the original payload.
func (s *ExportService) Export(w io.Writer, opts ExportOptions) (int, error) {
	spans, err := s.logs.ReadDays(opts.Days)
	if err != nil {
		return 0, fmt.Errorf("failed to read trace logs: %w", err)
	}

	written := 0
	for _, span := range spans {
		if opts.SessionID != "" && span.SessionID != opts.SessionID {
			continue
		}

		if opts.Redact && s.tokenizer != nil {
			span.ToolInput = s.redact(span.ToolInput, span.SessionID)
			span.ToolOutput = s.redact(span.ToolOutput, span.SessionID)
		}

		data, err := json.Marshal(span)
		if err != nil {
			logging.Logger.Warn("Skipping unexportable span", "span", span.SpanID, "error", err)
			continue
		}

		if _, err := w.Write(append(data, '\n')); err != nil {
			return written, fmt.Errorf("failed to write export line: %w", err)
		}
		written++
	}

	return written, nil
}

func (s *ExportService) redact(payload map[string]any, sessionID string) map[string]any {
	if len(payload) == 0 {
		return payload
	}

	fields := make([]string, 0, len(payload))
	for field := range payload {
		fields = append(fields, field)
	}

	redacted, err := s.tokenizer.Tokenize(payload, sessionID, fields)
	if err != nil || redacted == nil {
		logging.Logger.Warn("Redaction failed, exporting original payload",
			"session", sessionID, "error", err)
		return payload
	}
	return redacted
}
