package services

import (
	"context"
	"errors"

	"vigia/internal/domain"
	"vigia/internal/ports"
)

var errFake = errors.New("fake failure")

// fakeReader serves a canned window, most-recent-first
type fakeReader struct {
	spans []domain.Span
	err   error
}

func (f *fakeReader) Recent(ctx context.Context, sessionID string, limit int) ([]domain.Span, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.spans) > limit {
		return f.spans[:limit], nil
	}
	return f.spans, nil
}

func (f *fakeReader) ToolSequence(ctx context.Context, sessionID string, limit int) ([]string, error) {
	spans, err := f.Recent(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.ToolName
	}
	return names, nil
}

func (f *fakeReader) Stats(ctx context.Context) (ports.StoreStats, error) {
	return ports.StoreStats{}, f.err
}

// fakeWriter records puts and can fail on demand
type fakeWriter struct {
	puts []domain.Span
	err  error
}

func (f *fakeWriter) Put(ctx context.Context, span domain.Span) error {
	if f.err != nil {
		return f.err
	}
	f.puts = append(f.puts, span)
	return nil
}

// fakeAppendLog records appended lines and serves canned reads
type fakeAppendLog struct {
	appended  []domain.Span
	readSpans []domain.Span
	appendErr error
	readErr   error
}

func (f *fakeAppendLog) Append(span domain.Span, raw map[string]any) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, span)
	return nil
}

func (f *fakeAppendLog) ReadDays(n int) ([]domain.Span, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.readSpans, nil
}

// fakeTokenizer applies a fixed transform or fails on demand
type fakeTokenizer struct {
	err       error
	transform func(map[string]any) map[string]any
}

func (f *fakeTokenizer) Tokenize(payload map[string]any, sessionID string, fields []string) (map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.transform != nil {
		return f.transform(payload), nil
	}
	return payload, nil
}

// fakeState is an in-memory ports.GuardStateStore
type fakeState struct {
	counts  map[string]int
	blocked map[string]bool
}

func newFakeState() *fakeState {
	return &fakeState{counts: make(map[string]int), blocked: make(map[string]bool)}
}

func (f *fakeState) AutoFixCount(sessionID string) (int, error) {
	return f.counts[sessionID], nil
}

func (f *fakeState) IncrementAutoFixes(sessionID string) (int, error) {
	f.counts[sessionID]++
	return f.counts[sessionID], nil
}

func (f *fakeState) IsBlocked(sessionID string) (bool, error) {
	return f.blocked[sessionID], nil
}

func (f *fakeState) SetBlocked(sessionID string, blocked bool) error {
	f.blocked[sessionID] = blocked
	return nil
}

func (f *fakeState) BlockedSessions() ([]string, error) {
	var out []string
	for id, b := range f.blocked {
		if b {
			out = append(out, id)
		}
	}
	return out, nil
}

// fakeAlertSink collects written alerts
type fakeAlertSink struct {
	alerts []domain.Alert
}

func (f *fakeAlertSink) Write(alert domain.Alert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}

// fakeAuditLog collects audit records
type fakeAuditLog struct {
	records []domain.AuditRecord
}

func (f *fakeAuditLog) Record(record domain.AuditRecord) error {
	f.records = append(f.records, record)
	return nil
}

// fakeNormalizer returns a canned span
type fakeNormalizer struct {
	span domain.Span
	raw  map[string]any
}

func (f *fakeNormalizer) Normalize(raw map[string]any) domain.Span {
	f.raw = raw
	return f.span
}
