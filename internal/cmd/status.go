package cmd

import (
	"context"
	"fmt"
	"sort"
)

// StatusCmd shows store totals and blocked sessions
type StatusCmd struct{}

// Run executes the status command
func (s *StatusCmd) Run(cli *CLI) error {
	stats, err := cli.Container.TraceRepo.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read store stats: %w", err)
	}

	fmt.Printf("Traces stored: %d\n", stats.TotalSpans)
	fmt.Printf("Sessions:      %d\n", len(stats.SessionSpans))

	if len(stats.SessionSpans) > 0 {
		sessions := make([]string, 0, len(stats.SessionSpans))
		for id := range stats.SessionSpans {
			sessions = append(sessions, id)
		}
		sort.Strings(sessions)

		fmt.Println()
		for _, id := range sessions {
			fmt.Printf("  %-36s %d spans\n", id, stats.SessionSpans[id])
		}
	}

	blocked, err := cli.Container.GuardianService.BlockedSessions()
	if err != nil {
		return fmt.Errorf("failed to read blocked sessions: %w", err)
	}

	fmt.Println()
	if len(blocked) == 0 {
		fmt.Println("No sessions blocked.")
	} else {
		fmt.Printf("Blocked sessions (%d):\n", len(blocked))
		for _, id := range blocked {
			fmt.Printf("  %s\n", id)
		}
	}

	return nil
}
