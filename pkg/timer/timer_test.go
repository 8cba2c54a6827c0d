package timer

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newMachine() (*Machine, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)}
	return New(WithClock(clock.Now)), clock
}

func TestStart_RequiresTicket(t *testing.T) {
	m, _ := newMachine()
	if err := m.Start(false); !errors.Is(err, ErrNoTicket) {
		t.Fatalf("Start() error = %v, want ErrNoTicket", err)
	}
	if m.State() != StateIdle {
		t.Errorf("State() = %v, want idle", m.State())
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	m, _ := newMachine()
	m.SetTicket("PROJ-42", "PROJ", "feature/PROJ-42")
	if err := m.Start(false); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(false); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestStartStop_AccumulatesAndResumes(t *testing.T) {
	m, clock := newMachine()
	m.SetTicket("PROJ-42", "PROJ", "feature/PROJ-42")

	if err := m.Start(true); err != nil {
		t.Fatal(err)
	}
	clock.Advance(1500 * time.Millisecond)
	if !m.Stop() {
		t.Fatal("Stop() = false, want true")
	}
	if got := m.Elapsed(); got != 1500*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 1.5s", got)
	}

	// Idle time does not count.
	clock.Advance(time.Hour)

	if err := m.Start(false); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Minute)
	if got := m.Elapsed(); got != 2*time.Minute+1500*time.Millisecond {
		t.Errorf("running Elapsed() = %v", got)
	}
	m.Stop()

	if got := m.ElapsedMinutes(); got != 2 {
		t.Errorf("ElapsedMinutes() = %d, want 2", got)
	}
	if m.AutoStarted() {
		t.Error("AutoStarted() = true after a manual run")
	}
}

func TestStop_IdleIsNoop(t *testing.T) {
	m, _ := newMachine()
	if m.Stop() {
		t.Error("Stop() on idle machine = true")
	}
	if m.Elapsed() != 0 {
		t.Errorf("Elapsed() = %v", m.Elapsed())
	}
}

func TestResetAfterLog(t *testing.T) {
	m, clock := newMachine()
	m.SetTicket("PROJ-42", "PROJ", "")
	_ = m.Start(true)
	clock.Advance(45 * time.Minute)

	m.ResetAfterLog()
	if m.Running() || m.Elapsed() != 0 || m.AutoStarted() {
		t.Errorf("after reset: running=%v elapsed=%v auto=%v", m.Running(), m.Elapsed(), m.AutoStarted())
	}
	if id, _ := m.Ticket(); id != "PROJ-42" {
		t.Errorf("ticket cleared by reset: %q", id)
	}
}

func TestConsume(t *testing.T) {
	m, clock := newMachine()
	m.SetTicket("PROJ-42", "PROJ", "")
	_ = m.Start(false)
	clock.Advance(30 * time.Minute)
	m.Stop()

	// A new run starts while 30 minutes are being logged.
	_ = m.Start(false)
	clock.Advance(5 * time.Minute)
	m.Consume(30 * time.Minute)

	if got := m.Elapsed(); got != 5*time.Minute {
		t.Errorf("Elapsed() = %v, want 5m", got)
	}

	m.Consume(time.Hour)
	if got := m.Elapsed(); got != 5*time.Minute {
		t.Errorf("Consume below zero changed the live run: %v", got)
	}
}

func TestSnapshot(t *testing.T) {
	m, clock := newMachine()
	m.SetTicket("OPS-7", "OPS", "hotfix/OPS-7")
	_ = m.Start(true)
	clock.Advance(90 * time.Second)

	s := m.Snapshot()
	if !s.IsActive || s.TicketID != "OPS-7" || s.BranchName != "hotfix/OPS-7" || s.ElapsedMS != 90000 || s.StartTime == nil || !s.AutoStarted {
		t.Errorf("unexpected snapshot %+v", s)
	}

	m.Stop()
	if s := m.Snapshot(); s.IsActive || s.StartTime != nil {
		t.Errorf("stopped snapshot %+v", s)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{59 * time.Second, "00:00:59"},
		{45*time.Minute + 3*time.Second, "00:45:03"},
		{2*time.Hour + 999*time.Millisecond, "02:00:00"},
		{123 * time.Hour, "123:00:00"},
		{-time.Second, "00:00:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestStartStop_RealClock(t *testing.T) {
	m := New()
	m.SetTicket("PROJ-1", "PROJ", "")
	_ = m.Start(false)
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	got := m.Elapsed()
	if got < 50*time.Millisecond || got > 250*time.Millisecond {
		t.Errorf("Elapsed() = %v, want about 50ms", got)
	}
}
