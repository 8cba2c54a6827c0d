package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"branchclock-hq/branchclock/pkg/config"
)

// ErrNotFound is returned when no settings exist for a workspace.
var ErrNotFound = errors.New("not found")

// Settings is the state surviving process restarts for one workspace.
type Settings struct {
	AutoStart      bool            `json:"auto_start"`
	AutoLog        bool            `json:"auto_log"`
	LastBranchInfo *LastBranchInfo `json:"last_branch_info,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// LastBranchInfo caches the last branch resolved to a ticket.
type LastBranchInfo struct {
	Branch     string `json:"branch"`
	TicketID   string `json:"ticket_id"`
	ProjectKey string `json:"project_key"`
}

// DefaultSettings derives initial settings from automation configuration.
func DefaultSettings(cfg config.AutomationConfig) *Settings {
	return &Settings{
		AutoStart: cfg.AutoStart == nil || *cfg.AutoStart,
		AutoLog:   cfg.AutoLog == nil || *cfg.AutoLog,
	}
}

// JournalEntry records one logging attempt that reached the primary tracker.
type JournalEntry struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	TicketID    string `json:"ticket_id"`
	ProjectKey  string `json:"project_key"`
	Minutes     int    `json:"minutes"`
	Description string `json:"description,omitempty"`

	// Trigger is "commit", "branch_switch" or "manual".
	Trigger string `json:"trigger"`

	PrimarySucceeded   bool   `json:"primary_succeeded"`
	SecondarySucceeded bool   `json:"secondary_succeeded"`
	SecondarySkipped   bool   `json:"secondary_skipped"`
	SecondaryError     string `json:"secondary_error,omitempty"`

	JiraWorklogID       string `json:"jira_worklog_id,omitempty"`
	TimeEntryID         string `json:"time_entry_id,omitempty"`
	ProductiveProjectID string `json:"productive_project_id,omitempty"`
	ProductiveServiceID string `json:"productive_service_id,omitempty"`

	LoggedAt time.Time `json:"logged_at"`
}

// ListOptions filters ListEntries. Entries are returned newest first.
type ListOptions struct {
	WorkspaceID string
	TicketID    string
	Since       time.Time
	// Limit caps the result. Zero means no limit.
	Limit int
}

// Store is a settings and journal backend.
type Store interface {
	// LoadSettings returns ErrNotFound when nothing was saved yet.
	LoadSettings(ctx context.Context, workspaceID string) (*Settings, error)
	SaveSettings(ctx context.Context, workspaceID string, settings *Settings) error

	// AppendEntry assigns an ID and LoggedAt when they are empty.
	AppendEntry(ctx context.Context, entry *JournalEntry) error
	ListEntries(ctx context.Context, opts ListOptions) ([]JournalEntry, error)

	// PruneEntries deletes entries logged before cutoff.
	PruneEntries(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// StorageError is a backend failure.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

func settingsKey(workspaceID string) string {
	return "settings/" + workspaceID
}
