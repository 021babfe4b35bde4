package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"vigia/internal/logging"
)

// maxRawPayload bounds how much of an unparseable payload is preserved
const maxRawPayload = 64 * 1024

// CaptureCmd captures one raw hook event from stdin
type CaptureCmd struct {
	Phase string `help:"Hook phase override (pre or post)" optional:""`
}

// Run executes the capture command. It always succeeds: a hook process
// must never fail the agent because of a capture problem.
func (c *CaptureCmd) Run(cli *CLI) error {
	raw := readRawEvent(os.Stdin, c.Phase)
	span := cli.Container.CaptureService.Capture(context.Background(), raw)

	logging.Logger.Info("Hook event captured",
		"span", span.SpanID,
		"session", span.SessionID,
		"tool", span.ToolName)

	return nil
}

// readRawEvent decodes a raw hook payload from r. Unparseable input is
// preserved as an error passthrough record instead of being dropped.
func readRawEvent(r io.Reader, phase string) map[string]any {
	data, err := io.ReadAll(io.LimitReader(r, maxRawPayload))
	if err != nil {
		logging.Logger.Warn("Failed to read hook payload", "error", err)
		return map[string]any{"error": fmt.Sprintf("unreadable payload: %v", err)}
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		logging.Logger.Warn("Unparseable hook payload", "error", err)
		raw = map[string]any{
			"error":    fmt.Sprintf("unparseable payload: %v", err),
			"raw_text": string(data),
		}
	}
	// A JSON null decodes into a nil map without error
	if raw == nil {
		raw = map[string]any{}
	}

	if phase != "" {
		if _, ok := raw["hook_type"]; !ok {
			raw["hook_type"] = phase
		}
	}

	return raw
}
