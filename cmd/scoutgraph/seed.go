package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/scoutgraph/internal/model"
)

// NewSeedCmd creates the seed command group.
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Manage seed handles",
	}
	cmd.AddCommand(newSeedAddCmd(), newSeedListCmd())
	return cmd
}

func newSeedAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [handle...]",
		Short: "Add seed handles to the frontier",
		Long: `Add stores seed handles. Seeds are processed before discovered handles.

Handles are normalized (leading @ removed, lowercased). Handles that are
already known as seed, discovered or accepted are reported and skipped.

Examples:
  scoutgraph seed add alice @Bob
  scoutgraph seed add --file seeds.txt
  scoutgraph seed add --from-config`,
		RunE: runSeedAddCmd,
	}
	cmd.Flags().StringP("file", "f", "", "Read handles from a file, one per line (# starts a comment)")
	cmd.Flags().Bool("from-config", false, "Add the seeds listed in the configuration file")
	return cmd
}

func runSeedAddCmd(cmd *cobra.Command, args []string) error {
	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	fromConfig, err := cmd.Flags().GetBool("from-config")
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	handles := append([]string(nil), args...)
	if file != "" {
		fromFile, err := readHandleFile(file)
		if err != nil {
			return err
		}
		handles = append(handles, fromFile...)
	}
	if fromConfig && a.cfg.File != nil {
		handles = append(handles, a.cfg.File.Seeds...)
	}
	if len(handles) == 0 {
		return errors.New("no handles given (pass them as arguments, --file or --from-config)")
	}

	res, err := a.admin.AddSeeds(cmd.Context(), handles)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Added %d seed(s)\n", len(res.Added))
	if len(res.Duplicates) > 0 {
		fmt.Fprintf(out, "Skipped %d already known: %s\n", len(res.Duplicates), strings.Join(res.Duplicates, ", "))
	}
	if len(res.Invalid) > 0 {
		fmt.Fprintf(out, "Skipped %d invalid: %s\n", len(res.Invalid), strings.Join(res.Invalid, ", "))
	}
	return err
}

// readHandleFile reads one handle per line, ignoring blanks and comments.
func readHandleFile(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided seed file
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	var handles []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		handles = append(handles, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return handles, nil
}

func newSeedListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List seed handles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := cmd.Flags().GetString("status")
			if err != nil {
				return err
			}
			st := model.Status(status)
			if status != "" && !st.IsValid() {
				return fmt.Errorf("unknown status %q", status)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			seeds, err := a.admin.ListSeeds(cmd.Context(), st)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range seeds {
				fmt.Fprintf(out, "%-30s %-10s %s\n", s.Handle, s.Status, s.AddedAt.Local().Format(displayTimeLayout))
			}
			fmt.Fprintf(out, "%d seed(s)\n", len(seeds))
			return nil
		},
	}
	cmd.Flags().String("status", "", "Only list seeds with this status (pending, processing, checked)")
	return cmd
}

// displayTimeLayout formats timestamps in listings.
const displayTimeLayout = "2006-01-02 15:04"
