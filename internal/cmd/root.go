package cmd

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"vigia/internal/config"
	"vigia/internal/logging"
)

// CLI represents the command-line interface structure
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables automatic cleanup)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited)" default:"1000"`

	Capture  CaptureCmd  `cmd:"capture" help:"Capture one raw hook event from stdin" hidden:""`
	Guard    GuardCmd    `cmd:"guard" help:"Capture a hook event and enforce guardian policy" hidden:""`
	Traces   TracesCmd   `cmd:"traces" help:"View recent trace events"`
	Status   StatusCmd   `cmd:"status" help:"Show store totals and blocked sessions"`
	Usage    UsageCmd    `cmd:"usage" help:"Show token usage and cost from the trace archive"`
	Export   ExportCmd   `cmd:"export" help:"Export archived traces as JSONL"`
	Sessions SessionsCmd `cmd:"sessions" help:"Manage sessions (clear, unblock, reset)"`

	// Internal fields (not flags)
	Container *Container       `kong:"-"`
	settings  *config.Settings `kong:"-"`
}

// AfterApply loads settings, initializes logging, and wires the container.
// Precedence: CLI flags > env vars > settings.json > defaults.
func (c *CLI) AfterApply() error {
	settings, err := config.LoadSettings()
	if err != nil {
		// A broken settings file should not take the hook pipeline down
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		settings = &config.Settings{}
	}
	c.settings = settings

	// Apply MaxLogFiles setting
	if c.MaxLogFiles == 1000 {
		if _, hasEnv := os.LookupEnv("VIGIA_MAX_LOG_FILES"); !hasEnv {
			if settings.MaxLogFiles != nil {
				c.MaxLogFiles = *settings.MaxLogFiles
			}
		}
	}

	// Apply Debug setting
	if !c.Debug {
		if _, hasEnv := os.LookupEnv("VIGIA_DEBUG"); !hasEnv {
			if settings.Debug != nil && *settings.Debug {
				c.Debug = true
			}
		}
	}

	// Initialize logging first and get the log file path
	logFilePath, err := logging.Initialize(c.Debug, c.DebugFile, c.MaxLogFiles)
	if err != nil {
		return err
	}

	// Set environment variables AFTER initialization so child processes
	// inherit debug settings and append to the same log file
	if c.Debug || c.DebugFile != "" {
		os.Setenv("VIGIA_DEBUG", "1")
		if logFilePath != "" {
			os.Setenv("VIGIA_DEBUG_FILE", logFilePath)
		}
	}
	if c.MaxLogFiles != 1000 {
		os.Setenv("VIGIA_MAX_LOG_FILES", fmt.Sprintf("%d", c.MaxLogFiles))
	}

	// Create container AFTER logging is initialized
	container, err := NewContainer(settings)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	c.Container = container

	return nil
}

// Close closes all resources held by the CLI
func (c *CLI) Close() error {
	if c.Container != nil {
		return c.Container.Close()
	}
	return nil
}
