package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/cli"
	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/server"
	"branchclock-hq/branchclock/pkg/storage"
	"branchclock-hq/branchclock/pkg/storage/retention"
	"branchclock-hq/branchclock/pkg/telemetry/health"
	"branchclock-hq/branchclock/pkg/tui"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	tui           bool
	noServer      bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the workspace and track time",
	Long: `Watch every repository of the workspace and drive the timer from git
activity until interrupted.

The local control API is served on server.listen_address unless disabled.
With --tui a dashboard takes over the terminal and logs go to a file next to
the state database.

Examples:
  # Start with the config in the current directory
  branchclock run

  # Dashboard, no control API
  branchclock run --tui --no-server

  # Override listen address
  branchclock run --listen 127.0.0.1:7411`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.tui, "tui", false, "show the terminal dashboard")
	runCmd.Flags().BoolVar(&runFlags.noServer, "no-server", false, "do not serve the control API")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := requireJira(cfg); err != nil {
		return err
	}

	logOut, closeLog, err := logOutput(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer closeLog()
	logger, err := newLogger(cfg, logOut)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	tel, err := newTelemetry(cfg)
	if err != nil {
		return err
	}
	defer tel.shutdown(context.Background(), logger)

	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("open storage: %w", err))
	}
	defer store.Close()

	pruner := retention.NewPruner(store, cfg.Storage.Retention, logger)
	if err := pruner.Start(ctx); err != nil {
		logger.Warn("failed to start journal retention", "error", err)
	} else {
		defer pruner.Stop()
		if next := pruner.NextRun(); next != nil {
			logger.Debug("journal retention scheduled", "next_run", next)
		}
	}

	watcher, err := newWatcher(cfg, logger, tel.metrics)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer watcher.Stop()

	tr := newTrackers(cfg, logger, tel)
	orch, err := automation.New(watcher, tr.resolver, tr.worklog, automation.AuthFunc(tr.verify), automation.Options{
		Config:      cfg.Automation,
		WorkspaceID: cfg.Workspace.ID,
		Store:       store,
		Logger:      logger,
		Metrics:     tel.metrics,
		Tracer:      tel.tracer,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	var notes chan automation.Notification
	if runFlags.tui {
		notes = make(chan automation.Notification, 16)
	}
	orch.SetOnNotify(func(n automation.Notification) {
		logNotification(logger, n)
		if notes == nil {
			return
		}
		select {
		case notes <- n:
		default:
			logger.Debug("dashboard busy, notification dropped", "message", n.Message)
		}
	})

	orch.SetOnStateChange(func(s automation.State) {
		logger.Debug("state changed",
			"ticket", s.CurrentTicket,
			"branch", s.BranchName,
			"active", s.IsActive,
			"authenticated", s.Authenticated)
	})

	if err := watcher.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	if err := orch.CheckAuthentication(ctx); err != nil {
		if orch.Authenticated() {
			logger.Warn("jira unreachable, automation continues", "error", err)
		} else {
			logger.Warn("jira authentication failed, automation paused until credentials check out", "error", err)
		}
	}

	runErr := make(chan error, 2)
	go func() { runErr <- orch.Run(ctx) }()

	var srv *server.Server
	if config.Bool(cfg.Server.Enabled) && !runFlags.noServer {
		checker := health.New(5 * time.Second)
		checker.RegisterCheck("storage", health.Critical, store.Ping)
		checker.RegisterCheck("watcher", health.Critical, func(context.Context) error {
			if !watcher.Running() {
				return errors.New("watcher stopped")
			}
			return nil
		})
		checker.RegisterCheck("jira", health.Advisory, func(context.Context) error {
			if !orch.Authenticated() {
				return automation.ErrNotAuthenticated
			}
			return nil
		})

		srv = server.New(cfg.Server, server.Options{
			Controller:   orch,
			Repositories: watcher,
			Journal:      store,
			WorkspaceID:  cfg.Workspace.ID,
			Health:       checker,
			Version:      versionInfo(),
			Metrics:      tel.metrics,
			MetricsPath:  cfg.Telemetry.Metrics.Path,
			Tracer:       tel.tracer,
			Logger:       logger,
		})
		go func() {
			if err := srv.Start(ctx); err != nil {
				runErr <- err
			}
		}()
	}

	logger.Info("branchclock started",
		"version", Version,
		"workspace", cfg.Workspace.ID,
		"repositories", len(watcher.Repositories()),
		"control_api", srv != nil)

	if runFlags.tui {
		err = tui.Run(ctx, orch, tui.Options{Repositories: watcher, Notifications: notes})
		stop()
	} else {
		select {
		case <-ctx.Done():
		case err = <-runErr:
		}
	}

	logger.Info("shutting down")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Error("shutdown failed", "error", serr)
		}
	}
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// logOutput is stderr, or a log file while the dashboard owns the terminal.
func logOutput(cfg *config.Config) (io.Writer, func(), error) {
	if !runFlags.tui {
		return os.Stderr, func() {}, nil
	}
	dir := filepath.Dir(cfg.Storage.Path)
	if cfg.Storage.Driver == "memory" || cfg.Storage.Path == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "branchclock.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func logNotification(logger *slog.Logger, n automation.Notification) {
	attrs := []any{"ticket", n.TicketID}
	if n.Minutes > 0 {
		attrs = append(attrs, "minutes", n.Minutes)
	}
	switch n.Level {
	case automation.LevelError:
		logger.Error(n.Message, append(attrs, "error", n.Error)...)
	case automation.LevelWarning:
		logger.Warn(n.Message, attrs...)
	default:
		logger.Info(n.Message, attrs...)
	}
}
