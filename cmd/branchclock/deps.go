package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"branchclock-hq/branchclock/pkg/cli"
	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/gitwatch"
	"branchclock-hq/branchclock/pkg/storage"
	"branchclock-hq/branchclock/pkg/telemetry/metrics"
	"branchclock-hq/branchclock/pkg/telemetry/tracing"
	"branchclock-hq/branchclock/pkg/ticket"
	"branchclock-hq/branchclock/pkg/tracker"
	"branchclock-hq/branchclock/pkg/tracker/jira"
	"branchclock-hq/branchclock/pkg/tracker/productive"
	"branchclock-hq/branchclock/pkg/worklog"
)

// telemetry bundles the metrics and tracing handles of one process.
type telemetry struct {
	registry *prometheus.Registry
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
}

func newTelemetry(cfg *config.Config) (*telemetry, error) {
	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.tracing", err.Error())
	}
	registry := prometheus.NewRegistry()
	return &telemetry{
		registry: registry,
		metrics:  metrics.NewCollector(&cfg.Telemetry.Metrics, registry),
		tracer:   tracer,
	}, nil
}

func (t *telemetry) shutdown(ctx context.Context, logger *slog.Logger) {
	if err := t.tracer.Shutdown(ctx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
}

// trackers holds the clients shared by run, resolve and log.
type trackers struct {
	jira     *jira.Client
	resolver *ticket.Resolver
	worklog  *worklog.Logger
}

func newTrackers(cfg *config.Config, logger *slog.Logger, tel *telemetry) *trackers {
	opts := tracker.Options{Logger: logger, Metrics: tel.metrics, Tracer: tel.tracer}

	jiraClient := jira.New(cfg.Jira, opts)

	// A nil *productive.Client must not reach the Secondary interface.
	var secondary worklog.Secondary
	if cfg.Productive.ProductiveEnabled() {
		secondary = productive.New(cfg.Productive, opts)
	}

	return &trackers{
		jira:     jiraClient,
		resolver: ticket.NewResolver(jiraClient, logger, tel.tracer),
		worklog: worklog.NewLogger(jiraClient, secondary, cfg.Productive, worklog.Options{
			Logger:  logger,
			Metrics: tel.metrics,
			Tracer:  tel.tracer,
		}),
	}
}

// verify checks the Jira credentials.
func (t *trackers) verify(ctx context.Context) error {
	_, err := t.jira.Myself(ctx)
	return err
}

// newWatcher discovers the workspace repositories and watches each of them.
// It does not start the event loop.
func newWatcher(cfg *config.Config, logger *slog.Logger, m *metrics.Collector) (*gitwatch.Watcher, error) {
	opts := gitwatch.OptionsFromConfig(cfg.Watcher)
	opts.Logger = logger
	opts.Metrics = m
	w := gitwatch.New(opts)

	repos := gitwatch.DiscoverRepositories(cfg.Workspace.Roots, logger)
	for _, repo := range repos {
		if err := w.Watch(repo); err != nil {
			logger.Warn("skipping repository", "repository", repo, "error", err)
		}
	}
	if len(w.Repositories()) == 0 {
		_ = w.Stop()
		return nil, fmt.Errorf("no git repositories found under %v", cfg.Workspace.Roots)
	}
	return w, nil
}

// journalEntry builds the journal row for a logging attempt that reached the
// primary tracker.
func journalEntry(workspaceID, trigger string, e worklog.Entry, r *worklog.Result) *storage.JournalEntry {
	return &storage.JournalEntry{
		WorkspaceID:         workspaceID,
		TicketID:            e.TicketID,
		ProjectKey:          e.ProjectKey,
		Minutes:             e.Minutes,
		Description:         e.Description,
		Trigger:             trigger,
		PrimarySucceeded:    r.PrimarySucceeded,
		SecondarySucceeded:  r.SecondarySucceeded,
		SecondarySkipped:    r.SecondarySkipped,
		SecondaryError:      r.SecondaryError,
		JiraWorklogID:       r.JiraWorklogID,
		TimeEntryID:         r.TimeEntryID,
		ProductiveProjectID: r.ProjectID,
		ProductiveServiceID: r.ServiceID,
	}
}
