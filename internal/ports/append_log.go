package ports

import "vigia/internal/domain"

// AppendLog is the date-partitioned archival record of every span.
// Append writes one complete JSON line; raw carries the originating
// payload for forensic replay and may be nil.
type AppendLog interface {
	Append(span domain.Span, raw map[string]any) error
}

// AppendLogReader scans archived spans back out of the log files
type AppendLogReader interface {
	// ReadDays returns the spans of the most recent n day files,
	// newest file first. Lines that fail to decode are skipped.
	ReadDays(n int) ([]domain.Span, error)
}
