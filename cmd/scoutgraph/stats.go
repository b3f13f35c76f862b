package main

import (
	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show frontier counters and runtime settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ov, err := a.admin.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			w, closeFn, err := openReport(cmd)
			if err != nil {
				return err
			}
			if _, err := w.WriteStats(ov); err != nil {
				_ = closeFn()
				return err
			}
			return closeFn()
		},
	}
	addReportFlags(cmd, "text")
	return cmd
}
