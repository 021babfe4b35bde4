package services

import (
	"context"
	"fmt"
	"strings"

	"vigia/internal/domain"
	"vigia/internal/logging"
	"vigia/internal/ports"
)

// loopThreshold is the consecutive-run length at which a loop is detected
const loopThreshold = 5

// readCommands are shell commands that duplicate the dedicated read tool
var readCommands = map[string]bool{
	"cat":  true,
	"head": true,
	"tail": true,
	"less": true,
}

// Detector evaluates heuristic detectors over a session's recent window.
// It is read-only: scoring never mutates store state.
type Detector struct {
	reader ports.TraceReader
	window int
}

// NewDetector creates a Detector with the given window size
func NewDetector(reader ports.TraceReader, window int) *Detector {
	if window <= 0 {
		window = 10
	}
	return &Detector{reader: reader, window: window}
}

// Analyze fetches the session's recent window and runs every detector.
// Any internal failure degrades to "nothing detected" rather than
// propagating: a broken detector must never stall the agent.
func (d *Detector) Analyze(ctx context.Context, sessionID string) domain.Analysis {
	spans, err := d.reader.Recent(ctx, sessionID, d.window)
	if err != nil {
		logging.Logger.Warn("Window query failed, skipping detection",
			"session", sessionID, "error", err)
		return domain.Analysis{}
	}

	// Recent returns most-recent-first; run detection needs chronological
	chronological := make([]domain.Span, len(spans))
	for i, span := range spans {
		chronological[len(spans)-1-i] = span
	}

	return AnalyzeWindow(chronological)
}

// AnalyzeWindow runs all detectors over a chronological span window.
// Overall severity is the maximum across fired findings, so adding a
// finding can only raise it.
func AnalyzeWindow(window []domain.Span) domain.Analysis {
	findings := []domain.Finding{
		detectLoop(window),
		detectRepetition(window),
		detectToolMisuse(window),
	}
	findings = append(findings, detectCoordination(findings))

	analysis := domain.Analysis{Findings: findings}
	for _, f := range findings {
		if f.Detected && f.Severity > analysis.Severity {
			analysis.Severity = f.Severity
		}
	}
	return analysis
}

// detectLoop finds the longest run of consecutive identical tool names.
// Severity: 40 + 5 per step above 5 for moderate runs, 80 + 2 per step
// above 10 for long runs, capped at 100. Monotonic in run length.
func detectLoop(window []domain.Span) domain.Finding {
	finding := domain.Finding{Detector: domain.DetectorLoop}

	var runName string
	runLength := 0
	bestName := ""
	bestLength := 0

	for _, span := range window {
		if span.ToolName == runName {
			runLength++
		} else {
			runName = span.ToolName
			runLength = 1
		}
		if runLength > bestLength {
			bestLength = runLength
			bestName = runName
		}
	}

	if bestLength < loopThreshold {
		return finding
	}

	finding.Detected = true
	finding.Severity = loopSeverity(bestLength)
	finding.Occurrences = bestLength
	finding.Sequence = []string{bestName}
	finding.Issues = []string{
		fmt.Sprintf("tool %q called %d times consecutively", bestName, bestLength),
	}
	return finding
}

func loopSeverity(run int) int {
	if run >= 2*loopThreshold {
		severity := 80 + 2*(run-2*loopThreshold)
		if severity > 100 {
			return 100
		}
		return severity
	}
	return 40 + 5*(run-loopThreshold)
}

// detectRepetition fires when one tool dominates the window (at least 80%
// of at least 5 calls), regardless of interleaving
func detectRepetition(window []domain.Span) domain.Finding {
	finding := domain.Finding{Detector: domain.DetectorRepetition}
	if len(window) < loopThreshold {
		return finding
	}

	counts := make(map[string]int)
	dominant := ""
	for _, span := range window {
		counts[span.ToolName]++
		if counts[span.ToolName] > counts[dominant] {
			dominant = span.ToolName
		}
	}

	count := counts[dominant]
	if count < loopThreshold || count*10 < len(window)*8 {
		return finding
	}

	severity := 30 + 2*count
	if severity > 60 {
		severity = 60
	}

	finding.Detected = true
	finding.Severity = severity
	finding.Occurrences = count
	finding.Sequence = []string{dominant}
	finding.Issues = []string{
		fmt.Sprintf("tool %q dominates the window (%d of %d calls)", dominant, count, len(window)),
	}
	return finding
}

// detectToolMisuse flags shell invocations that duplicate the dedicated
// read tool (cat/head/tail/less against a path), repeated across at least
// two calls in the window
func detectToolMisuse(window []domain.Span) domain.Finding {
	finding := domain.Finding{Detector: domain.DetectorToolMisuse}

	count := 0
	var lastCommand string
	for _, span := range window {
		if span.ToolName != "Bash" {
			continue
		}
		command, ok := span.ToolInput["command"].(string)
		if !ok {
			continue
		}
		tokens := strings.Fields(command)
		if len(tokens) >= 2 && readCommands[tokens[0]] {
			count++
			lastCommand = command
		}
	}

	if count < 2 {
		return finding
	}

	severity := 30 + 10*count
	if severity > 80 {
		severity = 80
	}

	finding.Detected = true
	finding.Severity = severity
	finding.Occurrences = count
	finding.Issues = []string{
		fmt.Sprintf("shell used for file reads %d times (e.g. %q); use the read tool instead", count, lastCommand),
	}
	return finding
}

// detectCoordination fires when multiple detectors fire together,
// recommending escalation over a local fix
func detectCoordination(findings []domain.Finding) domain.Finding {
	finding := domain.Finding{Detector: domain.DetectorCoordination}

	fired := 0
	maxSeverity := 0
	for _, f := range findings {
		if f.Detected {
			fired++
			if f.Severity > maxSeverity {
				maxSeverity = f.Severity
			}
		}
	}

	if fired < 2 {
		return finding
	}

	severity := maxSeverity + 10
	if severity > 100 {
		severity = 100
	}

	finding.Detected = true
	finding.Severity = severity
	finding.Issues = []string{
		fmt.Sprintf("%d detectors fired simultaneously", fired),
	}
	return finding
}
