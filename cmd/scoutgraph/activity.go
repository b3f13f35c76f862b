package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewActivityCmd creates the activity command.
func NewActivityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the newest activity log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.admin.RecentActivity(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-20s", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Action)
				if e.Handle != "" {
					line += " @" + e.Handle
				}
				if e.Details != "" {
					line += " " + e.Details
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of entries to show")
	return cmd
}
