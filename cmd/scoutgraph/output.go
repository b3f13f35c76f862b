package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/scoutgraph/internal/report"
)

// addReportFlags registers --format and --output.
func addReportFlags(cmd *cobra.Command, defaultFormat string) {
	cmd.Flags().String("format", defaultFormat, "Output format: text, csv, json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of standard output")
}

// openReport returns the writer selected by the report flags and a
// function that closes the destination.
func openReport(cmd *cobra.Command) (report.Writer, func() error, error) {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, nil, err
	}
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, nil, err
	}

	var dest io.Writer = cmd.OutOrStdout()
	closeFn := func() error { return nil }
	if path != "" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		// Exports hold contact details.
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user-provided output path
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		dest = f
		closeFn = f.Close
	}

	w, err := report.New(format, dest)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return w, closeFn, nil
}
