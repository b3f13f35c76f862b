package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export accepted candidates",
		Long: `Export writes every accepted candidate, oldest first, with the columns
handle, display name, followers, avg recent views, engagement rate,
messaging handle, email, phone, website, bio, level found and date.

Examples:
  scoutgraph export -o accepted.csv
  scoutgraph export --format json
  scoutgraph export --format markdown -o accepted.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rows, err := a.admin.ExportAccepted(cmd.Context())
			if err != nil {
				return err
			}
			w, closeFn, err := openReport(cmd)
			if err != nil {
				return err
			}
			if _, err := w.WriteAccepted(rows); err != nil {
				_ = closeFn()
				return err
			}
			if err := closeFn(); err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("output"); path != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d candidate(s) to %s\n", len(rows), path)
			}
			return nil
		},
	}
	addReportFlags(cmd, "csv")
	return cmd
}
