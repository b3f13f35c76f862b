package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/scoutgraph/internal/config"
)

// NewConfigCmd creates the config command group for runtime settings.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change runtime settings",
		Long: `Runtime settings are stored in the database and re-read by a running
crawler at the start of every batch.

Keys:
  concurrent_limit       handles processed in parallel per batch
  max_level              deepest level evaluated and expanded (seeds are 0)
  min_followers          acceptance minimum for followers
  min_avg_views          acceptance minimum for average recent views
  min_engagement_rate    acceptance minimum engagement rate in percent
  script_status          active or paused
  following_fetch_limit  follow list entries read per accepted candidate
  activity_sample_size   recent items averaged (1-5)`,
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show runtime settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			values, err := a.admin.ViewConfig(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range config.RunKeys() {
				fmt.Fprintf(out, "%-22s %s\n", key, values[key])
			}
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a runtime setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.admin.SetConfig(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			values, err := a.admin.ViewConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], values[args[0]])
			return nil
		},
	}
}
