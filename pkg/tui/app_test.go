package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/gitwatch"
	"branchclock-hq/branchclock/pkg/ticket"
	"branchclock-hq/branchclock/pkg/timer"
	"branchclock-hq/branchclock/pkg/tracker"
	"branchclock-hq/branchclock/pkg/worklog"
)

type fakeController struct {
	mu          sync.Mutex
	state       automation.State
	submitted   []string
	selected    []string
	startErr    error
	cleared     int
	submitError error
	authErr     error
	authChecks  int
}

func (f *fakeController) CheckAuthentication(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authChecks++
	f.state.Authenticated = !tracker.IsAuthError(f.authErr)
	return f.authErr
}

func (f *fakeController) State() automation.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) StartTimer(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.state.IsActive = true
	return nil
}

func (f *fakeController) StopTimer(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.state.IsActive
	f.state.IsActive = false
	return was, nil
}

func (f *fakeController) SubmitTime(_ context.Context, description string) (*worklog.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, description)
	if f.submitError != nil {
		return nil, f.submitError
	}
	f.state.IsActive = false
	return &worklog.Result{PrimarySucceeded: true, SecondarySkipped: true}, nil
}

func (f *fakeController) SelectTicket(_ context.Context, key string) (*ticket.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, key)
	f.state.CurrentTicket = key
	return &ticket.Info{TicketID: key, ProjectKey: strings.Split(key, "-")[0]}, nil
}

func (f *fakeController) ClearCurrentTicket() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.state.CurrentTicket = ""
	f.state.IsActive = false
}

func (f *fakeController) SetAutoStart(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.AutoStart = on
}

func (f *fakeController) SetAutoLog(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.AutoLog = on
}

type fakeRepos []gitwatch.BranchInfo

func (r fakeRepos) Repositories() []gitwatch.BranchInfo { return r }

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// step feeds msg to m and runs the returned command once, feeding its
// message back when it is one the model consumes.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	if out, ok := cmd().(actionDoneMsg); ok {
		next, _ = m.Update(out)
		m = next.(Model)
	}
	return m
}

// typeText sends runes without running the cursor blink commands they return.
func typeText(m Model, text string) Model {
	for _, r := range text {
		next, _ := m.Update(key(string(r)))
		m = next.(Model)
	}
	return m
}

func newModel(ctrl *fakeController) Model {
	m := New(context.Background(), ctrl, Options{Repositories: fakeRepos{
		{Path: "/src/api", Branch: "feature/PROJ-42-login"},
		{Path: "/src/web", Branch: "main"},
	}})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func TestModel_StartStop(t *testing.T) {
	ctrl := &fakeController{state: automation.State{CurrentTicket: "PROJ-42", Authenticated: true, Elapsed: "00:00:00"}}
	m := newModel(ctrl)

	m = step(t, m, key("s"))
	if !m.snapshot.IsActive {
		t.Fatal("expected running state after s")
	}
	if !strings.Contains(m.View(), "running") {
		t.Errorf("view does not show running timer:\n%s", m.View())
	}

	m = step(t, m, key("x"))
	if m.snapshot.IsActive {
		t.Fatal("expected idle state after x")
	}
	if len(m.history) != 1 || m.history[0].Message != "Timer stopped, time kept" {
		t.Errorf("history = %+v", m.history)
	}
}

func TestModel_StartError(t *testing.T) {
	ctrl := &fakeController{startErr: timer.ErrNoTicket, state: automation.State{Authenticated: true}}
	m := newModel(ctrl)

	m = step(t, m, key("s"))
	if len(m.history) != 1 {
		t.Fatalf("history = %+v", m.history)
	}
	if got := m.history[0]; got.Level != automation.LevelError || got.Message != "No ticket selected" {
		t.Errorf("notification = %+v", got)
	}
	if m.busy {
		t.Error("model still busy after the action finished")
	}
}

func TestModel_Submit(t *testing.T) {
	ctrl := &fakeController{state: automation.State{CurrentTicket: "PROJ-42", IsActive: true, Authenticated: true}}
	m := newModel(ctrl)

	m = step(t, m, key("enter"))
	if m.state != stateSubmit {
		t.Fatalf("state = %v, want submit modal", m.state)
	}
	if !strings.Contains(m.View(), "Log Time") {
		t.Error("modal not rendered")
	}
	m = typeText(m, "review")
	m = step(t, m, key("enter"))

	if m.state != stateNormal {
		t.Errorf("state = %v after submit", m.state)
	}
	if len(ctrl.submitted) != 1 || ctrl.submitted[0] != "review" {
		t.Errorf("submitted = %q", ctrl.submitted)
	}
}

func TestModel_SubmitNothingToLog(t *testing.T) {
	ctrl := &fakeController{
		state:       automation.State{CurrentTicket: "PROJ-42", Authenticated: true},
		submitError: worklog.ErrNothingToLog,
	}
	m := newModel(ctrl)

	m = step(t, m, key("enter"))
	m = step(t, m, key("enter"))
	if len(m.history) != 0 {
		t.Errorf("the orchestrator reports this itself, got %+v", m.history)
	}
}

func TestModel_SubmitWithoutTicket(t *testing.T) {
	ctrl := &fakeController{state: automation.State{Authenticated: true}}
	m := newModel(ctrl)

	m = step(t, m, key("enter"))
	if m.state != stateNormal {
		t.Errorf("modal opened without a ticket")
	}
	if len(m.history) != 1 || m.history[0].Level != automation.LevelWarning {
		t.Errorf("history = %+v", m.history)
	}
}

func TestModel_SelectTicket(t *testing.T) {
	ctrl := &fakeController{state: automation.State{Authenticated: true}}
	m := newModel(ctrl)

	m = step(t, m, key("t"))
	m = step(t, m, key("enter"))
	if m.inputErr == "" {
		t.Error("empty key accepted")
	}
	m = typeText(m, "ops-7")
	m = step(t, m, key("enter"))

	if len(ctrl.selected) != 1 || ctrl.selected[0] != "OPS-7" {
		t.Errorf("selected = %q", ctrl.selected)
	}
	if m.snapshot.CurrentTicket != "OPS-7" {
		t.Errorf("snapshot ticket = %q", m.snapshot.CurrentTicket)
	}
}

func TestModel_EscCancelsInput(t *testing.T) {
	ctrl := &fakeController{state: automation.State{CurrentTicket: "PROJ-42", Authenticated: true}}
	m := newModel(ctrl)

	m = step(t, m, key("enter"))
	m = step(t, m, key("esc"))
	if m.state != stateNormal {
		t.Errorf("state = %v after esc", m.state)
	}
	if len(ctrl.submitted) != 0 {
		t.Error("esc submitted time")
	}
}

func TestModel_ToggleAndClear(t *testing.T) {
	ctrl := &fakeController{state: automation.State{CurrentTicket: "PROJ-42", AutoStart: true, Authenticated: true}}
	m := newModel(ctrl)

	m = step(t, m, key("a"))
	m = step(t, m, key("l"))
	if m.snapshot.AutoStart || !m.snapshot.AutoLog {
		t.Errorf("settings = start %v log %v", m.snapshot.AutoStart, m.snapshot.AutoLog)
	}

	m = step(t, m, key("c"))
	if ctrl.cleared != 1 || m.snapshot.CurrentTicket != "" {
		t.Errorf("clear not applied: cleared=%d ticket=%q", ctrl.cleared, m.snapshot.CurrentTicket)
	}
}

func TestModel_Notifications(t *testing.T) {
	ctrl := &fakeController{state: automation.State{Authenticated: true}}
	ch := make(chan automation.Notification, 1)
	m := New(context.Background(), ctrl, Options{Notifications: ch})

	ch <- automation.Notification{Level: automation.LevelSuccess, Message: "Logged 45m to PROJ-42 in Jira"}
	msg := waitForNotification(ch)()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		t.Error("model stopped listening for notifications")
	}
	if len(m.history) != 1 || m.history[0].Message != "Logged 45m to PROJ-42 in Jira" {
		t.Errorf("history = %+v", m.history)
	}

	for i := 0; i < maxNotes+3; i++ {
		m.push(automation.Notification{Message: "n"})
	}
	if len(m.history) != maxNotes {
		t.Errorf("kept %d notes, want %d", len(m.history), maxNotes)
	}
}

func TestModel_TickRefreshes(t *testing.T) {
	ctrl := &fakeController{state: automation.State{Elapsed: "00:00:00", Authenticated: true}}
	m := newModel(ctrl)

	ctrl.mu.Lock()
	ctrl.state.Elapsed = "00:01:00"
	ctrl.mu.Unlock()

	next, cmd := m.Update(tickMsg{})
	m = next.(Model)
	if m.snapshot.Elapsed != "00:01:00" {
		t.Errorf("elapsed = %q", m.snapshot.Elapsed)
	}
	if cmd == nil {
		t.Error("tick not rescheduled")
	}
	if n := len(m.list.Items()); n != 2 {
		t.Errorf("list has %d repositories", n)
	}
}

func TestModel_AuthCheck(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel automation.Level
		wantMsg   string
		wantAuth  bool
	}{
		{"verified", nil, automation.LevelSuccess, "Jira credentials verified", true},
		{"rejected", &tracker.AuthError{Tracker: "jira", StatusCode: 401}, automation.LevelError, "Not authenticated, check your Jira credentials", false},
		{"unreachable", &tracker.NetworkError{Tracker: "jira", Timeout: true}, automation.LevelWarning, "Could not reach Jira, automation continues", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{authErr: tt.err}
			m := newModel(ctrl)

			m = step(t, m, key("r"))
			if ctrl.authChecks != 1 {
				t.Fatalf("auth checks = %d, want 1", ctrl.authChecks)
			}
			if len(m.history) != 1 {
				t.Fatalf("history = %+v", m.history)
			}
			if got := m.history[0]; got.Level != tt.wantLevel || got.Message != tt.wantMsg {
				t.Errorf("notification = %+v", got)
			}
			if m.snapshot.Authenticated != tt.wantAuth || m.busy {
				t.Errorf("snapshot = %+v, busy = %v", m.snapshot, m.busy)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{automation.ErrNotAuthenticated, "Not authenticated, check your Jira credentials"},
		{timer.ErrAlreadyRunning, "Timer is already running"},
		{automation.ErrLogInProgress, "Already logging, try again shortly"},
		{automation.ErrTimePending, "Log or clear the pending time first"},
		{errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		if got := describe(tt.err); got != tt.want {
			t.Errorf("describe(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestRepoItem(t *testing.T) {
	item := repoItem{info: gitwatch.BranchInfo{Path: "/src/api", Branch: "feature/PROJ-42-login"}}
	if item.Title() != "api" {
		t.Errorf("Title = %q", item.Title())
	}
	if item.Description() != "feature/PROJ-42-login [PROJ-42]" {
		t.Errorf("Description = %q", item.Description())
	}
}
