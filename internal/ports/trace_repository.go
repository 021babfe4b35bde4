package ports

import (
	"context"

	"vigia/internal/domain"
)

// TraceWriter persists canonical spans
type TraceWriter interface {
	Put(ctx context.Context, span domain.Span) error
}

// TraceReader queries spans. Results are most-recent-first; an empty
// sessionID means all sessions.
type TraceReader interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]domain.Span, error)
	ToolSequence(ctx context.Context, sessionID string, limit int) ([]string, error)
	Stats(ctx context.Context) (StoreStats, error)
}

// TraceAdmin deletes session data
type TraceAdmin interface {
	ClearSession(ctx context.Context, sessionID string) (int64, error)
}

// TraceRepository is the full indexed-store contract
type TraceRepository interface {
	TraceWriter
	TraceReader
	TraceAdmin
	Close() error
}

// StoreStats summarizes the indexed store contents
type StoreStats struct {
	TotalSpans   int64
	SessionSpans map[string]int64
}
