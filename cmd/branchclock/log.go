package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/cli"
	"branchclock-hq/branchclock/pkg/storage"
	"branchclock-hq/branchclock/pkg/worklog"
)

var logFlags struct {
	ticket  string
	minutes int
	message string
	format  string
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log time to a ticket by hand",
	Long: `Log minutes to a ticket in Jira, and to Productive when configured, without
touching the timer. The attempt is recorded in the journal.

Examples:
  branchclock log --ticket PROJ-123 --minutes 45
  branchclock log -t PROJ-123 -m 90 --message "pairing on the login flow"`,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().StringVarP(&logFlags.ticket, "ticket", "t", "", "ticket key (required)")
	logCmd.Flags().IntVarP(&logFlags.minutes, "minutes", "m", 0, "whole minutes to log (required)")
	logCmd.Flags().StringVar(&logFlags.message, "message", "", "worklog description")
	logCmd.Flags().StringVarP(&logFlags.format, "format", "f", "text", "output format: text, json")
	_ = logCmd.MarkFlagRequired("ticket")
	_ = logCmd.MarkFlagRequired("minutes")
}

func runLog(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(logFlags.format)
	if err != nil {
		return err
	}
	if logFlags.minutes < 1 {
		return cli.NewConfigError("--minutes", "must be at least 1")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireJira(cfg); err != nil {
		return err
	}
	logger, err := newCommandLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	tel, err := newTelemetry(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer tel.shutdown(ctx, logger)

	tr := newTrackers(cfg, logger, tel)
	info, err := tr.resolver.ResolveTicket(ctx, strings.ToUpper(strings.TrimSpace(logFlags.ticket)))
	if err != nil {
		return cli.NewCommandError("log", err)
	}

	entry := worklog.Entry{
		TicketID:    info.TicketID,
		ProjectKey:  info.ProjectKey,
		Minutes:     logFlags.minutes,
		Description: logFlags.message,
	}
	result, err := tr.worklog.Log(ctx, entry)
	if err != nil {
		return cli.NewCommandError("log", err)
	}

	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		logger.Warn("time logged but the journal is unavailable", "error", err)
	} else {
		defer store.Close()
		if err := store.AppendEntry(ctx, journalEntry(cfg.Workspace.ID, automation.TriggerManual, entry, result)); err != nil {
			logger.Warn("time logged but the journal append failed", "error", err)
		}
	}

	if err := cli.RenderResult(cmd.OutOrStdout(), info.TicketID, entry.Minutes, result, format); err != nil {
		return fmt.Errorf("render result: %w", err)
	}
	return nil
}
