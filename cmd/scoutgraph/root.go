package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for scoutgraph.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scoutgraph",
		Short: "Breadth-first social graph crawler for candidate discovery",
		Long: `scoutgraph discovers candidate profiles by walking the follow graph
breadth-first from a set of seed handles.

Every discovered handle is fetched through a pool of scraping identities,
scored against follower, view and engagement thresholds, and accepted
candidates are stored with the contact channels found in their bio.

State lives in a SQLite database under the XDG data directory. Runtime
settings such as thresholds and concurrency are read from the database at
the start of every batch, so "scoutgraph config set" takes effect on a
running crawler.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .scoutgraph in current or home directory)")
	cmd.PersistentFlags().String("db-dir", "", "Database directory (default: XDG data directory)")
	cmd.PersistentFlags().String("state-dir", "", "Session and key directory (default: XDG state directory)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewIdentityCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewPauseCmd())
	cmd.AddCommand(NewResumeCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewAcceptedCmd())
	cmd.AddCommand(NewRequeueCmd())
	cmd.AddCommand(NewActivityCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
