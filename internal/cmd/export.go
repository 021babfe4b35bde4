package cmd

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	adapterredact "vigia/internal/adapters/redact"
	"vigia/internal/config"
	"vigia/internal/services"
)

// ExportCmd exports archived traces as JSONL
type ExportCmd struct {
	Anonymize bool   `help:"Rewrite home-rooted paths relative to ~"`
	Days      int    `help:"Number of recent day files to export (0 = all)" default:"0"`
	Gzip      bool   `help:"Compress the output with gzip"`
	Output    string `help:"Output file (default: stdout)" short:"o"`
	Redact    bool   `help:"Mask sensitive payload values"`
	SessionID string `help:"Only export this session" name:"session"`
}

// Run executes the export command
func (e *ExportCmd) Run(cli *CLI) error {
	var out io.Writer = os.Stdout
	if e.Output != "" {
		file, err := os.Create(config.ExpandPath(e.Output))
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	if e.Gzip {
		gz := gzip.NewWriter(out)
		defer gz.Close()
		out = gz
	}

	exporter := services.NewExportService(
		cli.Container.AppendLog,
		adapterredact.NewTokenizer(e.Anonymize),
	)

	written, err := exporter.Export(out, services.ExportOptions{
		SessionID: e.SessionID,
		Days:      e.Days,
		Redact:    e.Redact || e.Anonymize,
	})
	if err != nil {
		return err
	}

	if e.Output != "" {
		fmt.Printf("Exported %d traces to %s\n", written, e.Output)
	}

	return nil
}
