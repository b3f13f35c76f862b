package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/scoutgraph/internal/admin"
	"github.com/nao1215/scoutgraph/internal/database"
	"github.com/nao1215/scoutgraph/internal/model"
)

// NewIdentityCmd creates the identity command group.
func NewIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage scraping identities",
	}
	cmd.AddCommand(newIdentityAddCmd(), newIdentityListCmd(), newIdentityCheckCmd(), newIdentityStatusCmd())
	return cmd
}

func newIdentityAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [handle]",
		Short: "Add a scraping identity",
		Long: `Add stores an identity used to authenticate against the profile source.

The password is sealed with the installation key (kept in the XDG state
directory) before it is written to the database. It is read from the
first line of standard input so it does not end up in shell history.

Examples:
  echo 'secret' | scoutgraph identity add scout_one
  scoutgraph identity add scout_two --backup --proxy socks5://127.0.0.1:1081 < pw.txt
  scoutgraph identity add --from-config`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIdentityAddCmd,
	}
	cmd.Flags().String("proxy", "", "Route this identity through its own proxy")
	cmd.Flags().Bool("backup", false, "Use only after every active identity is exhausted")
	cmd.Flags().Bool("from-config", false, "Add the identities listed in the configuration file")
	return cmd
}

func runIdentityAddCmd(cmd *cobra.Command, args []string) error {
	fromConfig, err := cmd.Flags().GetBool("from-config")
	if err != nil {
		return err
	}
	if fromConfig == (len(args) == 1) {
		return errors.New("give either a handle or --from-config")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.withSealer(); err != nil {
		return err
	}

	var pending []admin.NewIdentity
	if fromConfig {
		if a.cfg.File == nil {
			return errors.New("no configuration file found")
		}
		for _, e := range a.cfg.File.Identities {
			pending = append(pending, admin.NewIdentity{
				Handle:   e.Handle,
				Password: e.Password,
				ProxyURL: e.Proxy,
				Backup:   e.Backup,
			})
		}
	} else {
		in := admin.NewIdentity{Handle: args[0]}
		if in.ProxyURL, err = cmd.Flags().GetString("proxy"); err != nil {
			return err
		}
		if in.Backup, err = cmd.Flags().GetBool("backup"); err != nil {
			return err
		}
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password from stdin: %w", err)
		}
		in.Password = strings.TrimRight(line, "\r\n")
		pending = append(pending, in)
	}

	out := cmd.OutOrStdout()
	added := 0
	for _, in := range pending {
		id, err := a.admin.AddIdentity(cmd.Context(), in)
		switch {
		case errors.Is(err, database.ErrDuplicateIdentity):
			fmt.Fprintf(out, "Skipped %s: already added\n", in.Handle)
			continue
		case err != nil:
			return fmt.Errorf("failed to add identity %q: %w", in.Handle, err)
		}
		added++
		fmt.Fprintf(out, "Added identity %s (%s)\n", id.Handle, id.Status)
	}
	if fromConfig {
		fmt.Fprintf(out, "%d identity(ies) added\n", added)
	}
	return nil
}

func newIdentityListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scraping identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.admin.ListIdentities(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, id := range ids {
				last := "never"
				if !id.LastUsedAt.IsZero() {
					last = id.LastUsedAt.Local().Format(displayTimeLayout)
				}
				proxy := ""
				if id.ProxyURL != "" {
					proxy = " via " + id.ProxyURL
				}
				fmt.Fprintf(out, "%-24s %-9s requests=%-8d last_used=%s%s\n",
					id.Handle, id.Status, id.RequestsMade, last, proxy)
			}
			fmt.Fprintf(out, "%d identity(ies)\n", len(ids))
			return nil
		},
	}
}

func newIdentityCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [handle...]",
		Short: "Log identities in and report their state",
		Long: `Check logs each identity in (reusing a stored session when it still
works) without spending a request from its hourly budget. An identity the
source rejects is marked inactive. With no arguments every active and
backup identity is checked.`,
		RunE: runIdentityCheckCmd,
	}
	addFixtureFlag(cmd)
	return cmd
}

func runIdentityCheckCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	b, err := a.openBackend(ctx, cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := a.openPool(ctx, b)
	if err != nil {
		return err
	}

	targets := make(map[string]bool, len(args))
	for _, h := range args {
		n, err := model.NormalizeHandle(h)
		if err != nil {
			return err
		}
		targets[n] = true
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, st := range p.Status() {
		if len(targets) > 0 && !targets[st.Handle] {
			continue
		}
		delete(targets, st.Handle)
		if err := p.Check(ctx, st.Handle); err != nil {
			failed++
			fmt.Fprintf(out, "%-24s FAILED  %v\n", st.Handle, err)
			continue
		}
		fmt.Fprintf(out, "%-24s OK\n", st.Handle)
	}
	for h := range targets {
		failed++
		fmt.Fprintf(out, "%-24s SKIPPED not active or backup\n", h)
	}
	if failed > 0 {
		return fmt.Errorf("%d identity check(s) failed", failed)
	}
	return nil
}

func newIdentityStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <handle> <active|backup|inactive|banned>",
		Short: "Change the status of an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := model.NormalizeHandle(args[0])
			if err != nil {
				return err
			}
			if err := a.admin.SetIdentityStatus(cmd.Context(), h, model.IdentityStatus(args[1])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity %s is now %s\n", h, args[1])
			return nil
		},
	}
}
