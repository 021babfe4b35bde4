package cmd

import (
	"context"
	"fmt"
	"os"

	"vigia/internal/logging"
)

// GuardCmd captures a hook event and enforces guardian policy.
// Wired as the agent's PreToolUse hook: exit code 2 denies the tool call.
type GuardCmd struct{}

// Run executes the guard command
func (g *GuardCmd) Run(cli *CLI) error {
	raw := readRawEvent(os.Stdin, "pre")
	ctx := context.Background()

	span := cli.Container.CaptureService.Capture(ctx, raw)
	verdict := cli.Container.GuardianService.Evaluate(ctx, span.SessionID)

	logging.Logger.Info("Guardian verdict",
		"session", span.SessionID,
		"allowed", verdict.Allowed,
		"severity", verdict.Severity,
		"recommendation", verdict.Recommendation)

	if !verdict.Allowed {
		// Exit 2 tells the agent to deny the tool call; the stderr text
		// is surfaced back to it as the reason
		fmt.Fprintf(os.Stderr, "vigia blocked this call (severity %d)\n", verdict.Severity)
		for _, issue := range verdict.Issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		if verdict.EscalationReason != "" {
			fmt.Fprintf(os.Stderr, "escalated: %s\n", verdict.EscalationReason)
		}

		if err := cli.Close(); err != nil {
			logging.Logger.Warn("Cleanup failed", "error", err)
		}
		os.Exit(2)
	}

	return nil
}
