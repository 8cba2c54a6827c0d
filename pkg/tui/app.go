// Package tui is the terminal dashboard for a running branchclock.
//
// The dashboard shows the timer, the current ticket and the watched
// repositories. It refreshes from the orchestrator once a second and
// prints notifications as they arrive.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/gitwatch"
	"branchclock-hq/branchclock/pkg/ticket"
	"branchclock-hq/branchclock/pkg/timer"
	"branchclock-hq/branchclock/pkg/tracker"
	"branchclock-hq/branchclock/pkg/worklog"
)

// Controller is the part of *automation.Orchestrator the dashboard drives.
type Controller interface {
	State() automation.State
	StartTimer(ctx context.Context) error
	StopTimer(ctx context.Context) (bool, error)
	SubmitTime(ctx context.Context, description string) (*worklog.Result, error)
	SelectTicket(ctx context.Context, key string) (*ticket.Info, error)
	ClearCurrentTicket()
	SetAutoStart(on bool)
	SetAutoLog(on bool)
	CheckAuthentication(ctx context.Context) error
}

// RepositoryLister lists watched repositories.
type RepositoryLister interface {
	Repositories() []gitwatch.BranchInfo
}

// Options configures a Model. Every field is optional.
type Options struct {
	Repositories  RepositoryLister
	Notifications <-chan automation.Notification
	Refresh       time.Duration
}

// maxNotes is how many notifications the dashboard keeps on screen.
const maxNotes = 5

// ─ state ───────────────────────────────────────────────────────────────────

type appState int

const (
	stateNormal appState = iota
	stateSubmit
	stateSelect
)

// ─ styles ──────────────────────────────────────────────────────────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	dimStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	labelStyle = lipgloss.NewStyle().Faint(true)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(58)
)

// ─ messages ────────────────────────────────────────────────────────────────

type tickMsg struct{}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

type notificationMsg struct {
	n automation.Notification
}

// actionDoneMsg reports a controller call made off the update loop.
type actionDoneMsg struct {
	note *automation.Notification
	err  error
}

// ─ list item ───────────────────────────────────────────────────────────────

type repoItem struct {
	info gitwatch.BranchInfo
}

func (i repoItem) Title() string { return filepath.Base(i.info.Path) }

func (i repoItem) Description() string {
	if key, ok := ticket.ExtractTicketKey(i.info.Branch); ok {
		return i.info.Branch + " [" + key + "]"
	}
	return i.info.Branch
}

func (i repoItem) FilterValue() string { return i.info.Path }

// ─ model ───────────────────────────────────────────────────────────────────

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	repos   RepositoryLister
	notes   <-chan automation.Notification
	refresh time.Duration

	list   list.Model
	input  textinput.Model
	state  appState
	width  int
	height int

	snapshot automation.State
	history  []automation.Notification
	inputErr string
	busy     bool
}

// New builds a dashboard over ctrl. ctx bounds every tracker call the
// dashboard makes.
func New(ctx context.Context, ctrl Controller, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Refresh <= 0 {
		opts.Refresh = time.Second
	}

	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Repositories"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	ti := textinput.New()
	ti.CharLimit = 200

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		repos:    opts.Repositories,
		notes:    opts.Notifications,
		refresh:  opts.Refresh,
		list:     l,
		input:    ti,
		snapshot: ctrl.State(),
	}
	m.loadRepositories()
	return m
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, opts Options) error {
	p := tea.NewProgram(New(ctx, ctrl, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// ─ commands ────────────────────────────────────────────────────────────────

func waitForNotification(ch <-chan automation.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg{n: n}
	}
}

func (m Model) startCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: ctrl.StartTimer(ctx)}
	}
}

func (m Model) stopCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		stopped, err := ctrl.StopTimer(ctx)
		if err != nil || !stopped {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{note: &automation.Notification{
			Level:   automation.LevelInfo,
			Message: "Timer stopped, time kept",
		}}
	}
}

// submitCmd relies on the orchestrator's own notification for the outcome.
func (m Model) submitCmd(description string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		_, err := ctrl.SubmitTime(ctx, description)
		if errors.Is(err, worklog.ErrNothingToLog) {
			err = nil
		}
		return actionDoneMsg{err: err}
	}
}

func (m Model) selectCmd(key string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		info, err := ctrl.SelectTicket(ctx, key)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{note: &automation.Notification{
			Level:    automation.LevelInfo,
			Message:  "Tracking " + info.TicketID,
			TicketID: info.TicketID,
		}}
	}
}

// authCmd reports an unreachable tracker as a warning when automation kept
// running.
func (m Model) authCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		err := ctrl.CheckAuthentication(ctx)
		switch {
		case err == nil:
			return actionDoneMsg{note: &automation.Notification{
				Level:   automation.LevelSuccess,
				Message: "Jira credentials verified",
			}}
		case ctrl.State().Authenticated:
			return actionDoneMsg{note: &automation.Notification{
				Level:   automation.LevelWarning,
				Message: "Could not reach Jira, automation continues",
			}}
		}
		return actionDoneMsg{err: err}
	}
}

func (m *Model) loadRepositories() {
	if m.repos == nil {
		return
	}
	repos := m.repos.Repositories()
	items := make([]list.Item, len(repos))
	for i, r := range repos {
		items[i] = repoItem{info: r}
	}
	m.list.SetItems(items)
}

func (m *Model) push(n automation.Notification) {
	m.history = append(m.history, n)
	if len(m.history) > maxNotes {
		m.history = m.history[len(m.history)-maxNotes:]
	}
}

// ─ tea.Model ───────────────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(m.refresh), waitForNotification(m.notes))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(m.width/3, m.height-2)
		return m, nil

	case tickMsg:
		m.snapshot = m.ctrl.State()
		m.loadRepositories()
		return m, tickCmd(m.refresh)

	case notificationMsg:
		m.push(msg.n)
		m.snapshot = m.ctrl.State()
		return m, waitForNotification(m.notes)

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.push(automation.Notification{Level: automation.LevelError, Message: describe(msg.err)})
		} else if msg.note != nil {
			m.push(*msg.note)
		}
		m.snapshot = m.ctrl.State()
		return m, nil
	}

	switch m.state {
	case stateSubmit, stateSelect:
		return m.updateInput(msg)
	default:
		return m.updateNormal(msg)
	}
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "a":
		m.ctrl.SetAutoStart(!m.snapshot.AutoStart)
		m.snapshot = m.ctrl.State()
		return m, nil
	case "l":
		m.ctrl.SetAutoLog(!m.snapshot.AutoLog)
		m.snapshot = m.ctrl.State()
		return m, nil
	case "c":
		m.ctrl.ClearCurrentTicket()
		m.snapshot = m.ctrl.State()
		m.push(automation.Notification{Level: automation.LevelInfo, Message: "Ticket cleared, time discarded"})
		return m, nil
	}

	if m.busy {
		return m, nil
	}
	switch key.String() {
	case "s":
		m.busy = true
		return m, m.startCmd()
	case "x":
		m.busy = true
		return m, m.stopCmd()
	case "r":
		m.busy = true
		return m, m.authCmd()
	case "enter":
		if m.snapshot.CurrentTicket == "" {
			m.push(automation.Notification{Level: automation.LevelWarning, Message: "No ticket selected"})
			return m, nil
		}
		return m.openInput(stateSubmit, "what did you work on? (optional)")
	case "t":
		return m.openInput(stateSelect, "e.g. PROJ-123")
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) openInput(s appState, placeholder string) (tea.Model, tea.Cmd) {
	m.state = s
	m.inputErr = ""
	m.input.Placeholder = placeholder
	m.input.Reset()
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.state = stateNormal
			m.inputErr = ""
			m.input.Blur()
			return m, nil
		case "enter":
			value := strings.TrimSpace(m.input.Value())
			var cmd tea.Cmd
			switch m.state {
			case stateSelect:
				if value == "" {
					m.inputErr = "ticket key cannot be empty"
					return m, nil
				}
				cmd = m.selectCmd(strings.ToUpper(value))
			default:
				cmd = m.submitCmd(value)
			}
			m.state = stateNormal
			m.inputErr = ""
			m.input.Blur()
			m.busy = true
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), m.renderDetail())
	base := lipgloss.JoinVertical(lipgloss.Left, body, m.renderHelp())

	switch m.state {
	case stateSubmit:
		return m.renderModal("Log Time", "Description", "Stops the timer and logs whole minutes")
	case stateSelect:
		return m.renderModal("Select Ticket", "Ticket key", "Only while the timer is stopped")
	}
	return base
}

// ─ layout helpers ──────────────────────────────────────────────────────────

func (m Model) renderDetail() string {
	dw := m.width - m.width/3
	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		PaddingLeft(3).
		PaddingRight(2).
		Width(dw - 1).
		Height(m.height - 2)

	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}

	s := m.snapshot
	var b strings.Builder

	status := dimStyle.Render("idle")
	switch {
	case !s.Authenticated:
		status = errStyle.Render("not authenticated")
	case s.Logging:
		status = warnStyle.Render("logging…")
	case s.IsActive:
		status = okStyle.Render("● running")
	}
	b.WriteString(clockStyle.Render(s.Elapsed) + "  " + status + "\n\n")

	ticketVal := dimStyle.Render("none")
	if s.CurrentTicket != "" {
		ticketVal = boldStyle.Render(s.CurrentTicket)
	}
	b.WriteString(row("Ticket   ", ticketVal))
	if s.TicketSummary != "" {
		b.WriteString(row("         ", s.TicketSummary))
	}
	b.WriteString(row("Branch   ", orDim(s.BranchName)))
	b.WriteString(row("Repo     ", orDim(s.Repository)))
	b.WriteString(row("Auto     ", fmt.Sprintf("start %s  log %s", onOff(s.AutoStart), onOff(s.AutoLog))))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(strings.Repeat("─", max(dw-7, 1))) + "\n\n")

	if len(m.history) == 0 {
		b.WriteString(dimStyle.Render("No activity yet") + "\n")
	}
	for i := len(m.history) - 1; i >= 0; i-- {
		b.WriteString(renderNote(m.history[i]) + "\n")
	}
	return style.Render(b.String())
}

func renderNote(n automation.Notification) string {
	switch n.Level {
	case automation.LevelSuccess:
		return okStyle.Render("✔ " + n.Message)
	case automation.LevelWarning:
		return warnStyle.Render("! " + n.Message)
	case automation.LevelError:
		return errStyle.Render("✖ " + n.Message)
	default:
		return dimStyle.Render("· " + n.Message)
	}
}

func (m Model) renderHelp() string {
	text := "s start   x stop   Enter log   t ticket   c clear   a auto start   l auto log   r re-auth   q quit"
	if m.state != stateNormal {
		text = "Enter confirm   Esc cancel"
	}
	sep := dimStyle.Render(strings.Repeat("─", m.width))
	return sep + "\n" + helpStyle.Render(text)
}

func (m Model) renderModal(title, label, hint string) string {
	var b strings.Builder
	b.WriteString(boldStyle.Render(title) + "\n\n")
	if m.snapshot.CurrentTicket != "" {
		b.WriteString(dimStyle.Render(m.snapshot.CurrentTicket+"  "+m.snapshot.Elapsed) + "\n\n")
	}
	b.WriteString(label + "\n")
	b.WriteString(m.input.View() + "\n")
	if m.inputErr != "" {
		b.WriteString("\n" + errStyle.Render(m.inputErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render(hint))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modalStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

// describe turns controller errors into short dashboard messages.
func describe(err error) string {
	switch {
	case errors.Is(err, automation.ErrNotAuthenticated), tracker.IsAuthError(err):
		return "Not authenticated, check your Jira credentials"
	case errors.Is(err, timer.ErrNoTicket):
		return "No ticket selected"
	case errors.Is(err, timer.ErrAlreadyRunning):
		return "Timer is already running"
	case errors.Is(err, automation.ErrLogInProgress):
		return "Already logging, try again shortly"
	case errors.Is(err, automation.ErrTimePending):
		return "Log or clear the pending time first"
	default:
		return err.Error()
	}
}

func onOff(b bool) string {
	if b {
		return okStyle.Render("on")
	}
	return dimStyle.Render("off")
}

func orDim(s string) string {
	if s == "" {
		return dimStyle.Render("none")
	}
	return s
}
