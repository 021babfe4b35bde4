package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vigia/internal/domain"
)

// TracesCmd shows recent trace events
type TracesCmd struct {
	Format    string `help:"Output format (table or json)" default:"table" enum:"table,json" short:"f"`
	Limit     int    `help:"Maximum number of results" default:"20" short:"l"`
	SessionID string `arg:"" optional:"" help:"Filter by session id"`
}

// Run executes the traces command
func (t *TracesCmd) Run(cli *CLI) error {
	spans, err := cli.Container.TraceRepo.Recent(context.Background(), t.SessionID, t.Limit)
	if err != nil {
		return fmt.Errorf("failed to query traces: %w", err)
	}

	switch t.Format {
	case "json":
		t.renderJSON(spans)
	default:
		t.renderTable(spans)
	}

	return nil
}

// renderTable displays spans in table format
func (t *TracesCmd) renderTable(spans []domain.Span) {
	if len(spans) == 0 {
		fmt.Println("No traces found.")
		return
	}

	fmt.Println("Session     Tool                  Hook          Status       Timestamp")
	fmt.Println(strings.Repeat("─", 84))

	for _, s := range spans {
		sessionID := s.SessionID
		if len(sessionID) > 10 {
			sessionID = sessionID[:10]
		}

		toolName := s.ToolName
		if len(toolName) > 21 {
			toolName = toolName[:18] + "..."
		}

		hookType := s.HookType
		if hookType == "" {
			hookType = "-"
		}
		if len(hookType) > 13 {
			hookType = hookType[:10] + "..."
		}

		fmt.Printf("%-11s %-21s %-13s %-12s %s\n",
			sessionID,
			toolName,
			hookType,
			s.Status,
			s.Timestamp.Format("2006-01-02 15:04:05"))
	}
}

// renderJSON displays spans in JSON format
func (t *TracesCmd) renderJSON(spans []domain.Span) {
	if len(spans) == 0 {
		fmt.Println("[]")
		return
	}

	type spanJSON struct {
		SessionID string `json:"session_id"`
		SpanID    string `json:"span_id"`
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		ToolName  string `json:"tool_name"`
		TraceID   string `json:"trace_id"`
	}

	jsonSpans := make([]spanJSON, len(spans))
	for i, s := range spans {
		jsonSpans[i] = spanJSON{
			SessionID: s.SessionID,
			SpanID:    s.SpanID,
			Status:    string(s.Status),
			Timestamp: s.Timestamp.Format(time.RFC3339),
			ToolName:  s.ToolName,
			TraceID:   s.TraceID,
		}
	}

	output, err := json.MarshalIndent(jsonSpans, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		return
	}

	fmt.Println(string(output))
}
