package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewAcceptedCmd creates the accepted command group.
func NewAcceptedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accepted",
		Short: "Review accepted candidates",
	}
	cmd.AddCommand(newAcceptedListCmd(), newAcceptedNoteCmd())
	return cmd
}

func newAcceptedListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recently accepted candidates",
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

			recent, err := a.admin.RecentAccepted(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range recent {
				fmt.Fprintf(out, "%s  @%-24s followers=%-10d avg_views=%-10d engagement=%.2f%% level=%d\n",
					c.AcceptedAt.Local().Format(displayTimeLayout), c.Handle,
					c.Metrics.Followers, c.Metrics.AvgRecentViews, c.Metrics.EngagementRatePct, c.Level)
				if c.Notes != "" {
					fmt.Fprintf(out, "    notes: %s\n", c.Notes)
				}
			}
			fmt.Fprintf(out, "%d candidate(s)\n", len(recent))
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "Number of candidates to show")
	return cmd
}

func newAcceptedNoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <handle> <text...>",
		Short: "Replace the notes of an accepted candidate",
		Long: `Note stores free-form operator notes on an accepted candidate, for
example outreach status. An empty text clears the notes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			notes := strings.Join(args[1:], " ")
			if err := a.admin.AnnotateAccepted(cmd.Context(), args[0], notes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated notes for %s\n", args[0])
			return nil
		},
	}
}
