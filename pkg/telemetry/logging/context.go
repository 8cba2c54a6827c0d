package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RepositoryKey is the context key for the repository path.
	RepositoryKey contextKey = "repository"

	// BranchKey is the context key for the branch name.
	BranchKey contextKey = "branch"

	// TicketKey is the context key for the ticket key.
	TicketKey contextKey = "ticket"

	// SessionKey is the context key for timer session identifiers.
	SessionKey contextKey = "session"

	// TraceIDKey is the context key for trace IDs.
	TraceIDKey contextKey = "trace_id"
)

// orderedKeys fixes the emission order of context fields.
var orderedKeys = []contextKey{RepositoryKey, BranchKey, TicketKey, SessionKey, TraceIDKey}

// WithRepository adds a repository path to the context.
func WithRepository(ctx context.Context, repo string) context.Context {
	return context.WithValue(ctx, RepositoryKey, repo)
}

// WithBranch adds a branch name to the context.
func WithBranch(ctx context.Context, branch string) context.Context {
	return context.WithValue(ctx, BranchKey, branch)
}

// WithTicket adds a ticket key to the context.
func WithTicket(ctx context.Context, ticket string) context.Context {
	return context.WithValue(ctx, TicketKey, ticket)
}

// WithSession adds a session identifier to the context.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// Field returns the string stored under key, or "".
func Field(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// extractContextFields returns the non-empty context fields as attributes.
func extractContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, key := range orderedKeys {
		if v := Field(ctx, key); v != "" {
			fields = append(fields, slog.String(string(key), v))
		}
	}
	return fields
}
