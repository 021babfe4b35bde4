package cmd

import (
	"context"
	"fmt"
)

// SessionsCmd manages sessions
type SessionsCmd struct {
	Clear   SessionsClearCmd   `cmd:"clear" help:"Delete all stored traces for a session"`
	Reset   SessionsResetCmd   `cmd:"reset" help:"Drop the session's cached correlation id"`
	Unblock SessionsUnblockCmd `cmd:"unblock" help:"Clear the guardian block flag for a session"`
}

// SessionsClearCmd deletes all stored traces for a session
type SessionsClearCmd struct {
	SessionID string `arg:"" help:"Session id to clear"`
}

// Run executes the clear command
func (c *SessionsClearCmd) Run(cli *CLI) error {
	deleted, err := cli.Container.TraceRepo.ClearSession(context.Background(), c.SessionID)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	fmt.Printf("Deleted %d traces for session %s\n", deleted, c.SessionID)
	return nil
}

// SessionsUnblockCmd clears the guardian block flag for a session
type SessionsUnblockCmd struct {
	SessionID string `arg:"" help:"Session id to unblock"`
}

// Run executes the unblock command
func (u *SessionsUnblockCmd) Run(cli *CLI) error {
	if err := cli.Container.GuardianService.Unblock(u.SessionID); err != nil {
		return fmt.Errorf("failed to unblock session: %w", err)
	}

	fmt.Printf("Session %s unblocked\n", u.SessionID)
	return nil
}

// SessionsResetCmd drops the session's cached correlation id
type SessionsResetCmd struct {
	SessionID string `arg:"" help:"Session id to reset"`
}

// Run executes the reset command
func (r *SessionsResetCmd) Run(cli *CLI) error {
	cli.Container.Sequencer.Reset(r.SessionID)
	fmt.Printf("Session %s reset\n", r.SessionID)
	return nil
}
