// Package worklog records completed sessions in the primary tracker (Jira)
// and mirrors them, best effort, to the secondary tracker (Productive).
//
// The primary write is authoritative: its failure fails the attempt. The
// secondary write runs only after the primary succeeded and its failures
// are reported in the Result, never returned.
package worklog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/telemetry/metrics"
	"branchclock-hq/branchclock/pkg/telemetry/tracing"
	"branchclock-hq/branchclock/pkg/tracker"
	"branchclock-hq/branchclock/pkg/tracker/productive"
)

// DateLayout formats the secondary entry date.
const DateLayout = "2006-01-02"

// Options configures a Logger.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer

	// Clock replaces time.Now.
	Clock func() time.Time
}

// Logger logs time to both trackers.
type Logger struct {
	primary   Primary
	secondary Secondary
	cfg       config.ProductiveConfig

	logger  *slog.Logger
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	now     func() time.Time
}

// NewLogger creates a logger. A nil secondary disables secondary logging.
func NewLogger(primary Primary, secondary Secondary, cfg config.ProductiveConfig, opts Options) *Logger {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Logger{
		primary:   primary,
		secondary: secondary,
		cfg:       cfg,
		logger:    logger.With("component", "worklog"),
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		now:       now,
	}
}

// SecondaryEnabled reports whether a secondary tracker is configured.
func (l *Logger) SecondaryEnabled() bool {
	return l.secondary != nil
}

// Log records entry. The error is non-nil only when the primary failed, in
// which case nothing was written anywhere.
func (l *Logger) Log(ctx context.Context, entry Entry) (*Result, error) {
	if entry.Minutes < 1 {
		return nil, ErrNothingToLog
	}

	ctx, span := l.tracer.Start(ctx, "worklog.log")
	defer span.End()
	tracing.SetTicketAttributes(span, entry.TicketID, entry.ProjectKey)
	span.SetAttributes(attribute.Int(tracing.AttrMinutes, entry.Minutes))

	now := l.now()
	started := entry.Started
	if started.IsZero() {
		started = now.Add(-time.Duration(entry.Minutes) * time.Minute)
	}

	wl, err := l.primary.AddWorklog(ctx, entry.TicketID, time.Duration(entry.Minutes)*time.Minute, entry.Description, started)
	if err != nil {
		l.metrics.RecordWorklog("jira", tracker.Outcome(err), entry.Minutes)
		tracing.SetStatus(span, err)
		l.logger.Error("primary worklog failed", "ticket", entry.TicketID, "minutes", entry.Minutes, "error", err)
		return nil, fmt.Errorf("log %d minutes to %s: %w", entry.Minutes, entry.TicketID, err)
	}
	l.metrics.RecordWorklog("jira", "success", entry.Minutes)

	result := &Result{PrimarySucceeded: true, JiraWorklogID: wl.ID}
	l.logger.Info("logged time to jira", "ticket", entry.TicketID, "minutes", entry.Minutes, "worklog", wl.ID)

	if l.secondary == nil {
		result.SecondarySkipped = true
		return result, nil
	}

	if err := l.logSecondary(ctx, entry, now, result); err != nil {
		result.SecondaryError = err.Error()
		l.metrics.RecordWorklog("productive", tracker.Outcome(err), entry.Minutes)
		l.logger.Warn("secondary worklog failed, primary kept",
			"ticket", entry.TicketID,
			"minutes", entry.Minutes,
			"error", err)
		return result, nil
	}

	result.SecondarySucceeded = true
	l.metrics.RecordWorklog("productive", "success", entry.Minutes)
	return result, nil
}

// logSecondary discovers person, project and service ids and creates the
// time entry. Discovered ids are recorded in result as they resolve.
func (l *Logger) logSecondary(ctx context.Context, entry Entry, now time.Time, result *Result) error {
	ctx, span := l.tracer.Start(ctx, "worklog.secondary")
	defer span.End()

	d := newDiscovery(l.secondary, l.cfg, entry, l.primary.Email())

	personID, _, err := l.runChain(ctx, "person", personChain, d)
	if err != nil {
		tracing.SetStatus(span, err)
		return err
	}
	d.personID = personID
	result.PersonID = personID

	projectID, projectConf, err := l.runChain(ctx, "project", projectChain, d)
	if err != nil {
		tracing.SetStatus(span, err)
		return err
	}
	d.projectID = projectID
	result.ProjectID = projectID
	result.ProjectConfidence = projectConf

	serviceID, serviceConf, err := l.runChain(ctx, "service", l.servicesChain(), d)
	if err != nil {
		tracing.SetStatus(span, err)
		return err
	}
	result.ServiceID = serviceID
	result.ServiceConfidence = serviceConf

	span.SetAttributes(
		attribute.String(tracing.AttrProject, projectID),
		attribute.String(tracing.AttrConfidence, string(projectConf)),
	)
	l.logger.Info("productive mapping",
		"ticket", entry.TicketID,
		"person", personID,
		"project", projectID,
		"project_confidence", projectConf,
		"service", serviceID,
		"service_confidence", serviceConf)

	id, err := l.secondary.CreateTimeEntry(ctx, productive.NewTimeEntry{
		Date:        now.In(time.Local).Format(DateLayout),
		Minutes:     entry.Minutes,
		Note:        entry.Description,
		PersonID:    personID,
		ProjectID:   projectID,
		ServiceID:   serviceID,
		JiraIssueID: entry.TicketID,
	})
	if err != nil {
		tracing.SetStatus(span, err)
		return err
	}
	result.TimeEntryID = id
	l.logger.Info("logged time to productive", "ticket", entry.TicketID, "minutes", entry.Minutes, "time_entry", id)
	return nil
}
