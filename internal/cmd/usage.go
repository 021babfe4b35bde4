package cmd

import (
	"fmt"
	"strings"
)

// UsageCmd shows token usage and cost aggregated from the trace archive
type UsageCmd struct {
	Days int `help:"Number of recent day files to aggregate" default:"1"`
}

// Run executes the usage command
func (u *UsageCmd) Run(cli *CLI) error {
	summary, err := cli.Container.UsageService.Summary(u.Days)
	if err != nil {
		return fmt.Errorf("failed to aggregate usage: %w", err)
	}

	if summary.Totals.Spans == 0 {
		fmt.Println("No usage data recorded.")
		return nil
	}

	fmt.Printf("Token usage (last %d day(s), %d traces scanned)\n\n", u.Days, summary.SpansSeen)
	fmt.Println("Model                      Input      Output  Cache Read        Cost")
	fmt.Println(strings.Repeat("─", 70))

	for _, m := range summary.Models {
		model := m.Model
		if len(model) > 24 {
			model = model[:21] + "..."
		}
		fmt.Printf("%-24s %9d %11d %11d  $%9.4f\n",
			model, m.InputTokens, m.OutputTokens, m.CacheReadTokens, m.Cost)
	}

	fmt.Println(strings.Repeat("─", 70))
	fmt.Printf("%-24s %9d %11d %11d  $%9.4f\n",
		"total",
		summary.Totals.InputTokens,
		summary.Totals.OutputTokens,
		summary.Totals.CacheReadTokens,
		summary.Totals.Cost)

	return nil
}
