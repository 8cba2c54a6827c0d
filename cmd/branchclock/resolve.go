package main

import (
	"github.com/spf13/cobra"

	"branchclock-hq/branchclock/pkg/cli"
	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/ticket"
)

var resolveFlags struct {
	format string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [branch]",
	Short: "Resolve a branch name to its ticket",
	Long: `Extract the ticket key from a branch name and look it up in Jira.

Without an argument the branch of the first watched repository is used.

Examples:
  branchclock resolve feature/PROJ-123-login
  branchclock resolve --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&resolveFlags.format, "format", "f", "text", "output format: text, json")
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(resolveFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newCommandLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var branch string
	if len(args) == 1 {
		branch = args[0]
	} else {
		localCfg := *cfg
		localCfg.Watcher.Notifications = config.BoolPtr(false)
		w, err := newWatcher(&localCfg, logger, nil)
		if err != nil {
			return cli.NewCommandError("resolve", err)
		}
		info, _ := w.GetCurrentBranchInfo("")
		_ = w.Stop()
		branch = info.Branch
	}

	// A branch without a key needs no tracker.
	if _, ok := ticket.ExtractTicketKey(branch); !ok {
		return cli.RenderTicket(cmd.OutOrStdout(), branch, nil, format)
	}
	if err := requireJira(cfg); err != nil {
		return err
	}

	tel, err := newTelemetry(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer tel.shutdown(ctx, logger)

	info, err := newTrackers(cfg, logger, tel).resolver.FindLinkedTicket(ctx, branch)
	if err != nil {
		return cli.NewCommandError("resolve", err)
	}
	return cli.RenderTicket(cmd.OutOrStdout(), branch, info, format)
}
