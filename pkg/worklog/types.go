package worklog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"branchclock-hq/branchclock/pkg/tracker/jira"
	"branchclock-hq/branchclock/pkg/tracker/productive"
)

// ErrNothingToLog is returned for entries under one minute.
var ErrNothingToLog = errors.New("nothing to log: less than one minute")

// Confidence grades a discovered secondary mapping. It is diagnostic only.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Entry is one completed session to log.
type Entry struct {
	TicketID    string
	ProjectKey  string
	Minutes     int
	Description string

	// Started is when the work began. Zero means Minutes before now.
	Started time.Time
}

// Result describes one logging attempt. It is only returned when the
// primary tracker accepted the worklog.
type Result struct {
	PrimarySucceeded   bool   `json:"primary_succeeded"`
	SecondarySucceeded bool   `json:"secondary_succeeded"`
	SecondarySkipped   bool   `json:"secondary_skipped"`
	SecondaryError     string `json:"secondary_error,omitempty"`

	JiraWorklogID string `json:"jira_worklog_id,omitempty"`
	TimeEntryID   string `json:"time_entry_id,omitempty"`

	PersonID          string     `json:"person_id,omitempty"`
	ProjectID         string     `json:"project_id,omitempty"`
	ServiceID         string     `json:"service_id,omitempty"`
	ProjectConfidence Confidence `json:"project_confidence,omitempty"`
	ServiceConfidence Confidence `json:"service_confidence,omitempty"`
}

// Partial reports a primary success with a failed secondary.
func (r *Result) Partial() bool {
	return r.PrimarySucceeded && !r.SecondarySucceeded && !r.SecondarySkipped
}

// DiscoveryError means no strategy could resolve a secondary id.
type DiscoveryError struct {
	// Step is "person", "project" or "service".
	Step string

	// Err is the last lookup failure, if any strategy failed outright.
	Err error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot discover productive %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("cannot discover productive %s", e.Step)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Primary is the authoritative tracker. *jira.Client implements it.
type Primary interface {
	AddWorklog(ctx context.Context, key string, timeSpent time.Duration, comment string, started time.Time) (*jira.Worklog, error)
	Email() string
}

// Secondary is the best-effort tracker. *productive.Client implements it.
type Secondary interface {
	People(ctx context.Context) ([]productive.Person, error)
	Projects(ctx context.Context) ([]productive.Project, error)
	Services(ctx context.Context, projectID string) ([]productive.Service, error)
	TimeEntries(ctx context.Context, projectID, personID string) ([]productive.TimeEntry, error)
	CreateTimeEntry(ctx context.Context, entry productive.NewTimeEntry) (string, error)
}
