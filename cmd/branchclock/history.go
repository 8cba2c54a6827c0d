package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"branchclock-hq/branchclock/pkg/cli"
	"branchclock-hq/branchclock/pkg/storage"
)

var historyFlags struct {
	limit  int
	since  time.Duration
	ticket string
	format string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show logged time",
	Long: `List journal entries of the workspace, newest first.

Examples:
  branchclock history
  branchclock history --since 168h --ticket PROJ-123
  branchclock history --format csv > worklog.csv`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 50, "maximum entries, 0 for all")
	historyCmd.Flags().DurationVar(&historyFlags.since, "since", 0, "only entries logged within this duration, e.g. 24h")
	historyCmd.Flags().StringVarP(&historyFlags.ticket, "ticket", "t", "", "only entries for this ticket")
	historyCmd.Flags().StringVarP(&historyFlags.format, "format", "f", "text", "output format: text, json, csv")
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(historyFlags.format)
	if err != nil {
		return err
	}
	if historyFlags.limit < 0 {
		return cli.NewConfigError("--limit", "must not be negative")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newCommandLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	defer store.Close()

	opts := storage.ListOptions{
		WorkspaceID: cfg.Workspace.ID,
		TicketID:    strings.ToUpper(strings.TrimSpace(historyFlags.ticket)),
		Limit:       historyFlags.limit,
	}
	if historyFlags.since > 0 {
		opts.Since = time.Now().Add(-historyFlags.since)
	}
	entries, err := store.ListEntries(cmd.Context(), opts)
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	return cli.RenderHistory(cmd.OutOrStdout(), entries, format)
}
