package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/cli"
	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/server"
	"branchclock-hq/branchclock/pkg/storage"
	"branchclock-hq/branchclock/pkg/ticket"
)

var statusFlags struct {
	format string
	local  bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the timer and the watched repositories",
	Long: `Show the timer state of the running daemon and the branch of every watched
repository.

When no daemon answers on server.listen_address the repositories are read
from disk instead and the ticket is derived from the branch name alone.

Examples:
  branchclock status
  branchclock status --format json
  branchclock status --local`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFlags.format, "format", "f", "text", "output format: text, json, csv")
	statusCmd.Flags().BoolVar(&statusFlags.local, "local", false, "read from disk even when a daemon is running")
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(statusFlags.format)
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

	ctx := cmd.Context()

	var st cli.Status
	if !statusFlags.local {
		st, err = daemonStatus(ctx, cfg)
		if err != nil {
			logger.Debug("daemon not reachable, reading local state", "error", err)
		}
	}
	if statusFlags.local || err != nil {
		st, err = localStatus(ctx, cfg, logger)
		if err != nil {
			return cli.NewCommandError("status", err)
		}
	}
	return cli.RenderStatus(cmd.OutOrStdout(), st, format)
}

func daemonStatus(ctx context.Context, cfg *config.Config) (cli.Status, error) {
	c := newDaemonClient(cfg.Server.ListenAddress)
	st := cli.Status{Source: cli.SourceDaemon}
	if err := c.get(ctx, "/api/state", &st.State); err != nil {
		return cli.Status{}, err
	}
	if err := c.get(ctx, "/api/repositories", &st.Repositories); err != nil {
		return cli.Status{}, err
	}
	return st, nil
}

// localStatus reads repositories from disk. The ticket comes from the
// persisted last branch when it is still checked out, else from the branch
// name.
func localStatus(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cli.Status, error) {
	localCfg := *cfg
	localCfg.Watcher.Notifications = config.BoolPtr(false)

	w, err := newWatcher(&localCfg, logger, nil)
	if err != nil {
		return cli.Status{}, err
	}
	defer w.Stop()

	st := cli.Status{Source: cli.SourceLocal, Repositories: w.Repositories()}
	settings := storage.DefaultSettings(cfg.Automation)
	if store, err := storage.Open(cfg.Storage, logger); err == nil {
		if saved, err := store.LoadSettings(ctx, cfg.Workspace.ID); err == nil {
			settings = saved
		}
		store.Close()
	}

	st.State = automation.State{
		AutoStart: settings.AutoStart,
		AutoLog:   settings.AutoLog,
		Elapsed:   "00:00:00",
	}
	if info, ok := w.GetCurrentBranchInfo(""); ok {
		st.State.Repository = info.Path
		st.State.BranchName = info.Branch
		if last := settings.LastBranchInfo; last != nil && last.Branch == info.Branch {
			st.State.CurrentTicket = last.TicketID
			st.State.CurrentProject = last.ProjectKey
		} else if key, ok := ticket.ExtractTicketKey(info.Branch); ok {
			st.State.CurrentTicket = key
			st.State.CurrentProject = ticket.ProjectKeyOf(key)
		}
	}
	return st, nil
}

// daemonClient reads the control API of a running daemon.
type daemonClient struct {
	base   string
	client *http.Client
}

func newDaemonClient(addr string) *daemonClient {
	return &daemonClient{
		base:   "http://" + addr,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *daemonClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		var e server.ErrorBody
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			return fmt.Errorf("%s: %s", path, e.Error.Message)
		}
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
