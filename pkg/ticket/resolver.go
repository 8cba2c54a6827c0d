package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"branchclock-hq/branchclock/pkg/telemetry/tracing"
	"branchclock-hq/branchclock/pkg/tracker"
	"branchclock-hq/branchclock/pkg/tracker/jira"
)

// ErrTicketNotFound means the key does not exist in the tracker. It is
// not fatal: the branch simply has no ticket.
var ErrTicketNotFound = errors.New("ticket not found")

// Info is resolved ticket metadata.
type Info struct {
	TicketID   string `json:"ticket_id"`
	ProjectKey string `json:"project_key"`
	Summary    string `json:"summary,omitempty"`
	Status     string `json:"status,omitempty"`
}

// IssueFetcher looks up an issue by key. *jira.Client implements it.
type IssueFetcher interface {
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
}

// Resolver resolves branch names to tickets.
type Resolver struct {
	fetcher IssueFetcher
	logger  *slog.Logger
	tracer  *tracing.Tracer
}

// NewResolver creates a resolver. logger and tracer may be nil.
func NewResolver(fetcher IssueFetcher, logger *slog.Logger, tracer *tracing.Tracer) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		fetcher: fetcher,
		logger:  logger.With("component", "ticket"),
		tracer:  tracer,
	}
}

// ResolveTicket fetches metadata for key. A missing ticket yields
// ErrTicketNotFound; invalid credentials yield a *tracker.AuthError.
func (r *Resolver) ResolveTicket(ctx context.Context, key string) (*Info, error) {
	ctx, span := r.tracer.Start(ctx, "ticket.resolve")
	defer span.End()
	tracing.SetTicketAttributes(span, key, ProjectKeyOf(key))

	issue, err := r.fetcher.GetIssue(ctx, key)
	if err != nil {
		tracing.SetStatus(span, err)
		if errors.Is(err, tracker.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrTicketNotFound, key, err)
		}
		return nil, err
	}

	info := &Info{
		TicketID:   issue.Key,
		ProjectKey: issue.Fields.Project.Key,
		Summary:    issue.Fields.Summary,
		Status:     issue.Fields.Status.Name,
	}
	if info.TicketID == "" {
		info.TicketID = key
	}
	if info.ProjectKey == "" {
		info.ProjectKey = ProjectKeyOf(info.TicketID)
	}
	return info, nil
}

// FindLinkedTicket extracts and resolves the ticket for branch. It returns
// nil, nil when the branch carries no key, the ticket does not exist, or the
// lookup failed for a non-fatal reason. Only authentication failures are
// returned as errors.
func (r *Resolver) FindLinkedTicket(ctx context.Context, branch string) (*Info, error) {
	key, via, ok := extract(branch)
	if !ok {
		r.logger.Debug("no ticket key in branch", "branch", branch)
		return nil, nil
	}

	info, err := r.ResolveTicket(ctx, key)
	switch {
	case err == nil:
		r.logger.Debug("resolved ticket", "branch", branch, "ticket", info.TicketID, "pattern", via)
		return info, nil
	case tracker.IsAuthError(err):
		return nil, err
	case errors.Is(err, ErrTicketNotFound):
		r.logger.Info("branch references unknown ticket", "branch", branch, "ticket", key)
		return nil, nil
	default:
		r.logger.Warn("ticket lookup failed", "branch", branch, "ticket", key, "error", err)
		return nil, nil
	}
}
