package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"vigia/internal/domain"
	"vigia/internal/logging"
	"vigia/internal/ports"
)

// CaptureService turns raw hook payloads into canonical spans and persists
// them to both stores. Persistence is best-effort: the caller's control
// flow never fails because a store write did.
type CaptureService struct {
	normalizer ports.Normalizer
	sequencer  *Sequencer
	tokenizer  ports.Tokenizer
	writer     ports.TraceWriter
	log        ports.AppendLog
}

// NewCaptureService creates a CaptureService. tokenizer may be nil when no
// tokenization collaborator is configured.
func NewCaptureService(
	normalizer ports.Normalizer,
	sequencer *Sequencer,
	tokenizer ports.Tokenizer,
	writer ports.TraceWriter,
	log ports.AppendLog,
) *CaptureService {
	return &CaptureService{
		normalizer: normalizer,
		sequencer:  sequencer,
		tokenizer:  tokenizer,
		writer:     writer,
		log:        log,
	}
}

// Capture normalizes one raw event and writes it to the append log and the
// indexed store. The two writes are independent: failure of one never
// prevents the other, and neither failure propagates to the caller.
func (c *CaptureService) Capture(ctx context.Context, raw map[string]any) domain.Span {
	span := c.normalizer.Normalize(raw)

	if span.TraceID == "" {
		span.TraceID = c.sequencer.CorrelationIDFor(span.SessionID)
	}

	span.ToolInput = c.tokenizePayload(span.ToolInput, span.SessionID)
	span.ToolOutput = c.tokenizePayload(span.ToolOutput, span.SessionID)

	var g errgroup.Group

	g.Go(func() error {
		if err := c.log.Append(span, raw); err != nil {
			logging.Logger.Error("Append log write failed", "span", span.SpanID, "error", err)
		}
		// Non-fatal - the indexed store write proceeds regardless
		return nil
	})

	g.Go(func() error {
		if err := c.writer.Put(ctx, span); err != nil {
			logging.Logger.Error("Indexed store write failed", "span", span.SpanID, "error", err)
		}
		// Non-fatal - the append log write proceeds regardless
		return nil
	})

	// Both branches swallow their own errors
	_ = g.Wait()

	logging.Logger.Debug("Captured span",
		"span", span.SpanID,
		"session", span.SessionID,
		"tool", span.ToolName,
		"hook", span.HookType)

	return span
}

// tokenizePayload runs the tokenization collaborator over every top-level
// field, fail-open: on any error the original payload is kept unchanged.
func (c *CaptureService) tokenizePayload(payload map[string]any, sessionID string) map[string]any {
	if c.tokenizer == nil || len(payload) == 0 {
		return payload
	}

	fields := make([]string, 0, len(payload))
	for field := range payload {
		fields = append(fields, field)
	}

	tokenized, err := c.tokenizer.Tokenize(payload, sessionID, fields)
	if err != nil || tokenized == nil {
		logging.Logger.Warn("Tokenization failed, keeping original payload",
			"session", sessionID, "error", err)
		return payload
	}

	return tokenized
}
