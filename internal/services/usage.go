package services

import (
	"sort"

	"vigia/internal/ports"
)

// ModelUsage aggregates token accounting for one model
type ModelUsage struct {
	Model               string
	Spans               int
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
	Cost                float64
}

// UsageSummary is the aggregate over a range of days
type UsageSummary struct {
	Models    []ModelUsage
	Totals    ModelUsage
	SpansSeen int
}

// UsageService aggregates token usage and cost from the append log
type UsageService struct {
	logs ports.AppendLogReader
}

// NewUsageService creates a UsageService
func NewUsageService(logs ports.AppendLogReader) *UsageService {
	return &UsageService{logs: logs}
}

// Summary aggregates usage over the most recent days day-files. Spans
// without usage data are counted but contribute nothing.
func (s *UsageService) Summary(days int) (UsageSummary, error) {
	spans, err := s.logs.ReadDays(days)
	if err != nil {
		return UsageSummary{}, err
	}

	byModel := make(map[string]*ModelUsage)
	summary := UsageSummary{SpansSeen: len(spans)}

	for _, span := range spans {
		if span.Usage == nil {
			continue
		}

		model := span.Usage.Model
		if model == "" {
			model = "unknown"
		}

		entry, ok := byModel[model]
		if !ok {
			entry = &ModelUsage{Model: model}
			byModel[model] = entry
		}

		entry.Spans++
		entry.InputTokens += span.Usage.InputTokens
		entry.OutputTokens += span.Usage.OutputTokens
		entry.CacheReadTokens += span.Usage.CacheReadTokens
		entry.CacheCreationTokens += span.Usage.CacheCreationTokens
		entry.Cost += span.Usage.Cost

		summary.Totals.Spans++
		summary.Totals.InputTokens += span.Usage.InputTokens
		summary.Totals.OutputTokens += span.Usage.OutputTokens
		summary.Totals.CacheReadTokens += span.Usage.CacheReadTokens
		summary.Totals.CacheCreationTokens += span.Usage.CacheCreationTokens
		summary.Totals.Cost += span.Usage.Cost
	}

	for _, entry := range byModel {
		summary.Models = append(summary.Models, *entry)
	}
	sort.Slice(summary.Models, func(i, j int) bool {
		return summary.Models[i].Cost > summary.Models[j].Cost
	})

	return summary, nil
}
