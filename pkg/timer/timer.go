// Package timer holds the single work-timing session of a workspace.
//
// A Machine is Idle or Running. Start resumes: time accumulated by earlier
// runs is kept until ResetAfterLog. Machine is not safe for concurrent use;
// callers serialize access.
package timer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrNoTicket is returned by Start when no ticket is selected.
	ErrNoTicket = errors.New("no ticket selected")

	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("timer already running")
)

// State of the machine.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Session is a snapshot of the timing session.
type Session struct {
	TicketID   string     `json:"ticket_id"`
	ProjectKey string     `json:"project_key"`
	BranchName string     `json:"branch_name"`
	StartTime  *time.Time `json:"start_time,omitempty"`

	// Elapsed includes the in-progress run.
	Elapsed     time.Duration `json:"-"`
	ElapsedMS   int64         `json:"elapsed_ms"`
	IsActive    bool          `json:"is_active"`
	AutoStarted bool          `json:"auto_started"`
}

// Machine is the timer state machine.
type Machine struct {
	now    func() time.Time
	logger *slog.Logger

	ticketID    string
	projectKey  string
	branch      string
	startTime   time.Time
	running     bool
	accumulated time.Duration
	autoStarted bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) { m.logger = logger }
}

// New creates an idle machine with zero elapsed time.
func New(opts ...Option) *Machine {
	m := &Machine{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "timer")
	return m
}

// SetTicket associates the session with a ticket. Accumulated time is kept.
func (m *Machine) SetTicket(ticketID, projectKey, branch string) {
	m.ticketID = ticketID
	m.projectKey = projectKey
	m.branch = branch
}

// ClearTicket drops the ticket association. A running timer keeps running.
func (m *Machine) ClearTicket() {
	m.ticketID = ""
	m.projectKey = ""
	m.branch = ""
}

// Ticket returns the associated ticket id and project key.
func (m *Machine) Ticket() (ticketID, projectKey string) {
	return m.ticketID, m.projectKey
}

// Branch returns the branch the ticket was resolved from.
func (m *Machine) Branch() string {
	return m.branch
}

// Start moves Idle to Running. auto marks a run started by automation.
func (m *Machine) Start(auto bool) error {
	if m.ticketID == "" {
		return ErrNoTicket
	}
	if m.running {
		return ErrAlreadyRunning
	}
	m.startTime = m.now()
	m.running = true
	m.autoStarted = auto
	m.logger.Debug("timer started", "ticket", m.ticketID, "auto", auto, "accumulated", m.accumulated)
	return nil
}

// Stop moves Running to Idle, folding the run into the accumulated time.
// Stopping an idle machine is a no-op; it reports whether a run ended.
func (m *Machine) Stop() bool {
	if !m.running {
		m.logger.Debug("stop ignored, timer idle")
		return false
	}
	if d := m.now().Sub(m.startTime); d > 0 {
		m.accumulated += d
	}
	m.running = false
	m.startTime = time.Time{}
	m.logger.Debug("timer stopped", "ticket", m.ticketID, "elapsed", m.accumulated)
	return true
}

// ResetAfterLog zeroes the accumulated time after a logging cycle.
func (m *Machine) ResetAfterLog() {
	if m.running {
		m.logger.Warn("reset while running, stopping first")
		m.Stop()
	}
	m.accumulated = 0
	m.autoStarted = false
}

// Consume subtracts d from the accumulated time. It is used instead of
// ResetAfterLog when a new run began while d was being logged.
func (m *Machine) Consume(d time.Duration) {
	m.accumulated -= d
	if m.accumulated < 0 {
		m.accumulated = 0
	}
}

// Running reports whether a run is active.
func (m *Machine) Running() bool {
	return m.running
}

// State returns Idle or Running.
func (m *Machine) State() State {
	if m.running {
		return StateRunning
	}
	return StateIdle
}

// AutoStarted reports whether the current or last run was started by automation.
func (m *Machine) AutoStarted() bool {
	return m.autoStarted
}

// Elapsed returns the accumulated time plus the in-progress run.
func (m *Machine) Elapsed() time.Duration {
	d := m.accumulated
	if m.running {
		if run := m.now().Sub(m.startTime); run > 0 {
			d += run
		}
	}
	return d
}

// ElapsedMinutes returns whole elapsed minutes, rounded down.
func (m *Machine) ElapsedMinutes() int {
	return int(m.Elapsed() / time.Minute)
}

// FormatElapsed renders Elapsed as HH:MM:SS.
func (m *Machine) FormatElapsed() string {
	return FormatDuration(m.Elapsed())
}

// Snapshot returns the session as seen now.
func (m *Machine) Snapshot() Session {
	elapsed := m.Elapsed()
	s := Session{
		TicketID:    m.ticketID,
		ProjectKey:  m.projectKey,
		BranchName:  m.branch,
		Elapsed:     elapsed,
		ElapsedMS:   elapsed.Milliseconds(),
		IsActive:    m.running,
		AutoStarted: m.autoStarted,
	}
	if m.running {
		start := m.startTime
		s.StartTime = &start
	}
	return s
}

// FormatDuration renders d as HH:MM:SS. Hours are not capped.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
