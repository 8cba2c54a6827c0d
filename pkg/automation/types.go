package automation

import (
	"context"
	"errors"

	"branchclock-hq/branchclock/pkg/gitwatch"
	"branchclock-hq/branchclock/pkg/ticket"
	"branchclock-hq/branchclock/pkg/worklog"
)

var (
	// ErrNotAuthenticated is returned by timer actions while the
	// orchestrator is suspended.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrLogInProgress is returned when a logging attempt is already
	// waiting on the trackers.
	ErrLogInProgress = errors.New("logging already in progress")

	// ErrTimePending is returned when a ticket change would reassign
	// unlogged time to another ticket.
	ErrTimePending = errors.New("unlogged time for the current ticket")
)

// Triggers recorded in the journal and metrics.
const (
	TriggerCommit       = "commit"
	TriggerBranchSwitch = "branch_switch"
	TriggerManual       = "manual"
)

// State is the snapshot rendered by the UI.
type State struct {
	IsActive          bool   `json:"is_active"`
	CurrentTicket     string `json:"current_ticket,omitempty"`
	CurrentProject    string `json:"current_project,omitempty"`
	TicketSummary     string `json:"ticket_summary,omitempty"`
	BranchName        string `json:"branch_name,omitempty"`
	Repository        string `json:"repository,omitempty"`
	ElapsedTimeMillis int64  `json:"elapsed_time_millis"`
	Elapsed           string `json:"elapsed"`
	Authenticated     bool   `json:"authenticated"`
	AutoStart         bool   `json:"auto_start"`
	AutoLog           bool   `json:"auto_log"`
	Logging           bool   `json:"logging"`
}

// Level is the severity of a Notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing message. Every logging attempt produces
// exactly one.
type Notification struct {
	Level    Level           `json:"level"`
	Message  string          `json:"message"`
	TicketID string          `json:"ticket_id,omitempty"`
	Minutes  int             `json:"minutes,omitempty"`
	Result   *worklog.Result `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Watcher is the part of *gitwatch.Watcher the orchestrator uses.
type Watcher interface {
	Events() <-chan gitwatch.Event
	GetCurrentBranchInfo(repoPath string) (gitwatch.BranchInfo, bool)
}

// Resolver is the part of *ticket.Resolver the orchestrator uses.
type Resolver interface {
	FindLinkedTicket(ctx context.Context, branch string) (*ticket.Info, error)
	ResolveTicket(ctx context.Context, key string) (*ticket.Info, error)
}

// WorklogLogger is implemented by *worklog.Logger.
type WorklogLogger interface {
	Log(ctx context.Context, entry worklog.Entry) (*worklog.Result, error)
}

// Authenticator verifies tracker credentials.
type Authenticator interface {
	Verify(ctx context.Context) error
}

// AuthFunc adapts a function to Authenticator.
type AuthFunc func(ctx context.Context) error

// Verify calls f.
func (f AuthFunc) Verify(ctx context.Context) error {
	return f(ctx)
}
