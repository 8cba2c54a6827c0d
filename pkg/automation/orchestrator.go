package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/gitwatch"
	"branchclock-hq/branchclock/pkg/storage"
	"branchclock-hq/branchclock/pkg/telemetry/logging"
	"branchclock-hq/branchclock/pkg/telemetry/metrics"
	"branchclock-hq/branchclock/pkg/telemetry/tracing"
	"branchclock-hq/branchclock/pkg/ticket"
	"branchclock-hq/branchclock/pkg/timer"
	"branchclock-hq/branchclock/pkg/tracker"
	"branchclock-hq/branchclock/pkg/worklog"
)

// Options configures an Orchestrator.
type Options struct {
	Config config.AutomationConfig

	// WorkspaceID keys persisted settings and journal entries.
	WorkspaceID string

	// Store persists settings and the journal. Nil keeps everything in
	// memory.
	Store storage.Store

	Logger  *slog.Logger
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer

	// Clock replaces time.Now for the timer.
	Clock func() time.Time

	// AuthRetry is the first delay before credentials are checked again
	// after a failure. It doubles on each failure up to maxAuthRetry.
	// Default: 30s
	AuthRetry time.Duration
}

const (
	defaultAuthRetry = 30 * time.Second
	maxAuthRetry     = 15 * time.Minute
)

// pendingTicket is a resolution that arrived while the timer still held
// time for another ticket.
type pendingTicket struct {
	info   *ticket.Info
	branch string
}

// Orchestrator drives the timer from repository activity.
type Orchestrator struct {
	watcher  Watcher
	resolver Resolver
	worklog  WorklogLogger
	auth     Authenticator
	store    storage.Store

	cfg         config.AutomationConfig
	workspaceID string
	logger      *slog.Logger
	metrics     *metrics.Collector
	tracer      *tracing.Tracer
	now         func() time.Time

	mu            sync.Mutex
	timer         *timer.Machine
	settings      storage.Settings
	authenticated bool
	repo          string
	branch        string
	summary       string
	branchSeq     uint64
	runSeq        uint64
	logging       bool
	pending       *pendingTicket

	// Credential state. rejected is set by an authentication failure and
	// cleared by a successful check; loggedOut disables automatic checks.
	rejected      bool
	loggedOut     bool
	authRetry     time.Duration
	authBackoff   time.Duration
	nextAuthCheck time.Time

	// Queued callbacks, delivered once mu is released.
	changed bool
	outbox  []Notification

	cbMu     sync.Mutex
	onState  func(State)
	onNotify func(Notification)
}

// New creates an orchestrator and restores persisted settings. When the
// last persisted branch is still checked out its ticket is restored
// without a tracker call. A nil auth never suspends.
func New(w Watcher, r Resolver, wl WorklogLogger, auth Authenticator, opts Options) (*Orchestrator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	store := opts.Store
	if store == nil {
		store = storage.NewMemoryStore()
	}
	authRetry := opts.AuthRetry
	if authRetry <= 0 {
		authRetry = defaultAuthRetry
	}

	o := &Orchestrator{
		watcher:       w,
		resolver:      r,
		worklog:       wl,
		auth:          auth,
		store:         store,
		cfg:           opts.Config,
		workspaceID:   opts.WorkspaceID,
		logger:        logger.With("component", "automation"),
		metrics:       opts.Metrics,
		tracer:        opts.Tracer,
		now:           now,
		timer:         timer.New(timer.WithClock(now), timer.WithLogger(logger)),
		authenticated: auth == nil,
		authRetry:     authRetry,
	}

	settings, err := store.LoadSettings(context.Background(), o.workspaceID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		settings = storage.DefaultSettings(o.cfg)
	case err != nil:
		return nil, fmt.Errorf("load automation settings: %w", err)
	}
	o.settings = *settings

	if info, ok := w.GetCurrentBranchInfo(""); ok {
		o.repo = info.Path
		o.branch = info.Branch
	}
	if last := o.settings.LastBranchInfo; last != nil && last.TicketID != "" && last.Branch == o.branch {
		o.timer.SetTicket(last.TicketID, last.ProjectKey, last.Branch)
		o.logger.Info("restored ticket for current branch", "branch", last.Branch, "ticket", last.TicketID)
	}
	return o, nil
}

// SetOnStateChange replaces the state callback. Nil removes it.
func (o *Orchestrator) SetOnStateChange(fn func(State)) {
	o.cbMu.Lock()
	o.onState = fn
	o.cbMu.Unlock()
}

// SetOnNotify replaces the notification callback. Nil removes it.
func (o *Orchestrator) SetOnNotify(fn func(Notification)) {
	o.cbMu.Lock()
	o.onNotify = fn
	o.cbMu.Unlock()
}

// lock acquires mu. Pair with unlock, which delivers queued callbacks.
func (o *Orchestrator) lock() {
	o.mu.Lock()
}

func (o *Orchestrator) unlock() {
	changed := o.changed
	outbox := o.outbox
	o.changed = false
	o.outbox = nil
	var state State
	if changed {
		state = o.stateLocked()
	}
	o.mu.Unlock()

	o.cbMu.Lock()
	onState, onNotify := o.onState, o.onNotify
	o.cbMu.Unlock()

	for _, n := range outbox {
		if onNotify != nil {
			onNotify(n)
		}
	}
	if changed && onState != nil {
		onState(state)
	}
}

// suspend releases mu around a tracker call. Callers must re-validate
// anything they read before calling it.
func (o *Orchestrator) suspend(call func()) {
	o.mu.Unlock()
	defer o.mu.Lock()
	call()
}

func (o *Orchestrator) notify(n Notification) {
	o.outbox = append(o.outbox, n)
	o.changed = true
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Orchestrator) stateLocked() State {
	s := o.timer.Snapshot()
	return State{
		IsActive:          s.IsActive,
		CurrentTicket:     s.TicketID,
		CurrentProject:    s.ProjectKey,
		TicketSummary:     o.summary,
		BranchName:        o.branch,
		Repository:        o.repo,
		ElapsedTimeMillis: s.ElapsedMS,
		Elapsed:           timer.FormatDuration(s.Elapsed),
		Authenticated:     o.authenticated,
		AutoStart:         o.settings.AutoStart,
		AutoLog:           o.settings.AutoLog,
		Logging:           o.logging,
	}
}

// Session returns the timer snapshot.
func (o *Orchestrator) Session() timer.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.timer.Snapshot()
}

// Settings returns the persisted automation toggles.
func (o *Orchestrator) Settings() storage.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// Authenticated reports whether the orchestrator is active.
func (o *Orchestrator) Authenticated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.authenticated
}

// Run handles watcher events until ctx is cancelled or the event channel
// closes. While unauthenticated it re-checks credentials with backoff.
func (o *Orchestrator) Run(ctx context.Context) error {
	events := o.watcher.Events()
	retry := time.NewTicker(o.authRetry)
	defer retry.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry.C:
			o.retryAuthentication(ctx)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			o.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent applies one watcher event. While unauthenticated the event
// triggers a credential check when one is due and is otherwise ignored; a
// successful check resolves the current branch itself.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev gitwatch.Event) {
	if o.retryAuthentication(ctx) {
		return
	}

	o.lock()
	defer o.unlock()

	if !o.authenticated {
		o.logger.Debug("event ignored, not authenticated", "kind", ev.Kind(), "repository", ev.Repository())
		return
	}
	ctx = logging.WithRepository(ctx, ev.Repository())

	switch e := ev.(type) {
	case *gitwatch.BranchChangeEvent:
		o.handleBranchChange(logging.WithBranch(ctx, e.NewBranch), e)
	case *gitwatch.CommitEvent:
		o.handleCommit(logging.WithBranch(ctx, e.Branch), e)
	}
}

func (o *Orchestrator) handleBranchChange(ctx context.Context, ev *gitwatch.BranchChangeEvent) {
	ctx, span := o.tracer.Start(ctx, "automation.branch_change")
	defer span.End()
	span.SetAttributes(
		attribute.String("branch.old", ev.OldBranch),
		attribute.String("branch.new", ev.NewBranch),
	)

	o.logger.InfoContext(ctx, "branch changed", "repository", ev.RepoPath, "from", ev.OldBranch, "to", ev.NewBranch)
	o.repo = ev.RepoPath
	o.branch = ev.NewBranch
	o.branchSeq++
	seq := o.branchSeq
	o.changed = true

	if o.flag(o.cfg.AutoStopOnBranchSwitch, false) && o.timer.Running() {
		o.stopAndLog(ctx, TriggerBranchSwitch, "")
		if seq != o.branchSeq {
			return
		}
	}
	o.resolveBranch(ctx, ev.NewBranch, seq, true)
}

func (o *Orchestrator) handleCommit(ctx context.Context, ev *gitwatch.CommitEvent) {
	if ev.OnBranchSwitch {
		o.logger.DebugContext(ctx, "commit came with a branch switch, not stopping", "hash", ev.Hash)
		return
	}
	if !o.flag(o.cfg.AutoStopOnCommit, true) || !o.timer.Running() {
		return
	}
	if b := o.timer.Branch(); b != "" && b != ev.Branch {
		o.logger.DebugContext(ctx, "commit on another branch, not stopping", "commit_branch", ev.Branch, "session_branch", b)
		return
	}

	ctx, span := o.tracer.Start(ctx, "automation.commit")
	defer span.End()
	span.SetAttributes(attribute.String("commit.hash", ev.Hash))

	o.logger.InfoContext(ctx, "commit detected, stopping timer", "hash", ev.Hash)
	o.stopAndLog(ctx, TriggerCommit, ev.Message)
}

// resolveBranch looks up the ticket for branch and applies it unless a
// newer branch change arrived meanwhile. switched marks a resolution
// caused by a branch change.
func (o *Orchestrator) resolveBranch(ctx context.Context, branch string, seq uint64, switched bool) {
	var info *ticket.Info
	if branch != gitwatch.BranchDetached && branch != gitwatch.BranchUnknown && branch != "" {
		var err error
		o.suspend(func() { info, err = o.resolver.FindLinkedTicket(ctx, branch) })
		if err != nil {
			o.handleTrackerError(ctx, err)
			return
		}
	}
	if seq != o.branchSeq || !o.authenticated {
		o.logger.DebugContext(ctx, "stale ticket resolution dropped", "branch", branch)
		return
	}

	if !o.applyTicket(info, branch) {
		return
	}
	if info == nil {
		return
	}
	if o.settings.AutoStart && (switched || !o.flag(o.cfg.AutoStartOnBranchSwitch, true)) {
		o.autoStart(ctx)
	}
}

// applyTicket makes info the current ticket. While the timer holds time
// for a different ticket the resolution is parked and applied once that
// time is logged or discarded; applyTicket then reports false.
func (o *Orchestrator) applyTicket(info *ticket.Info, branch string) bool {
	current, _ := o.timer.Ticket()
	next := ""
	if info != nil {
		next = info.TicketID
	}
	if (o.timer.Running() || o.timer.Elapsed() > 0) && current != "" && current != next {
		o.pending = &pendingTicket{info: info, branch: branch}
		o.logger.Info("timer busy, ticket change deferred", "current", current, "next", next)
		return false
	}
	o.pending = nil

	if info == nil {
		if !o.timer.Running() {
			o.timer.ClearTicket()
			o.summary = ""
			o.persist(nil)
		}
		o.changed = true
		return true
	}
	o.timer.SetTicket(info.TicketID, info.ProjectKey, branch)
	o.summary = info.Summary
	o.persist(&storage.LastBranchInfo{Branch: branch, TicketID: info.TicketID, ProjectKey: info.ProjectKey})
	o.changed = true
	return true
}

// settle applies a parked ticket once the timer holds no time.
func (o *Orchestrator) settle() {
	if o.pending == nil || o.timer.Running() || o.timer.Elapsed() > 0 {
		return
	}
	p := o.pending
	o.pending = nil
	o.applyTicket(p.info, p.branch)
}

func (o *Orchestrator) autoStart(ctx context.Context) {
	if o.timer.Running() {
		return
	}
	if err := o.timer.Start(true); err != nil {
		o.logger.WarnContext(ctx, "auto start failed", "error", err)
		return
	}
	o.runSeq++
	o.metrics.RecordSessionStarted("auto")
	o.metrics.SetTimerRunning(true)
	id, _ := o.timer.Ticket()
	o.logger.InfoContext(ctx, "timer started automatically", "ticket", id)
	o.notify(Notification{Level: LevelInfo, Message: "Timer started for " + id, TicketID: id})
}

// holdsTimeForOther reports whether the timer holds unlogged time for a
// ticket other than key.
func (o *Orchestrator) holdsTimeForOther(key string) bool {
	current, _ := o.timer.Ticket()
	return current != "" && current != key && o.timer.Elapsed() > 0
}

// stopAndLog stops a running timer and, when auto logging is on, logs it.
func (o *Orchestrator) stopAndLog(ctx context.Context, trigger, description string) {
	if !o.timer.Stop() {
		return
	}
	o.metrics.SetTimerRunning(false)
	o.changed = true

	id, _ := o.timer.Ticket()
	if !o.settings.AutoLog {
		o.notify(Notification{
			Level:    LevelInfo,
			Message:  fmt.Sprintf("Timer stopped for %s, %s pending", id, o.timer.FormatElapsed()),
			TicketID: id,
		})
		return
	}

	if o.timer.ElapsedMinutes() < 1 {
		o.timer.ResetAfterLog()
		o.notify(Notification{
			Level:    LevelWarning,
			Message:  fmt.Sprintf("Session on %s was under a minute and was not logged", id),
			TicketID: id,
		})
		o.settle()
		return
	}
	if _, err := o.logSession(ctx, trigger, description); errors.Is(err, ErrLogInProgress) {
		o.logger.InfoContext(ctx, "log already in flight, time kept pending", "ticket", id)
		o.notify(Notification{
			Level:    LevelWarning,
			Message:  fmt.Sprintf("Timer stopped for %s, %s pending while another log finishes", id, o.timer.FormatElapsed()),
			TicketID: id,
		})
	}
}

// logSession logs the stopped timer's whole minutes. It produces exactly
// one notification.
func (o *Orchestrator) logSession(ctx context.Context, trigger, description string) (*worklog.Result, error) {
	if o.logging {
		return nil, ErrLogInProgress
	}
	ticketID, projectKey := o.timer.Ticket()
	minutes := o.timer.ElapsedMinutes()
	if ticketID == "" {
		return nil, timer.ErrNoTicket
	}
	if minutes < 1 {
		return nil, worklog.ErrNothingToLog
	}
	run := o.runSeq

	ctx = logging.WithTicket(ctx, ticketID)
	ctx, span := o.tracer.Start(ctx, "automation.log_session")
	defer span.End()
	tracing.SetTicketAttributes(span, ticketID, projectKey)
	span.SetAttributes(attribute.String("trigger", trigger), attribute.Int("minutes", minutes))

	o.logging = true
	o.changed = true
	var (
		result *worklog.Result
		err    error
	)
	o.suspend(func() {
		result, err = o.worklog.Log(ctx, worklog.Entry{
			TicketID:    ticketID,
			ProjectKey:  projectKey,
			Minutes:     minutes,
			Description: description,
		})
	})
	o.logging = false
	o.changed = true

	if err != nil {
		tracing.SetStatus(span, err)
		o.logger.ErrorContext(ctx, "logging failed", "minutes", minutes, "error", err)
		o.notify(Notification{
			Level:    LevelError,
			Message:  fmt.Sprintf("Failed to log %dm to %s: %v", minutes, ticketID, err),
			TicketID: ticketID,
			Minutes:  minutes,
			Error:    err.Error(),
		})
		if tracker.IsAuthError(err) {
			o.deauthenticate(ctx, err)
		}
		return nil, err
	}

	// A run that began while we were logging keeps its own time.
	current, _ := o.timer.Ticket()
	if o.timer.Running() || run != o.runSeq || current != ticketID {
		o.timer.Consume(time.Duration(minutes) * time.Minute)
	} else {
		o.timer.ResetAfterLog()
	}

	o.record(ctx, trigger, ticketID, projectKey, minutes, description, result)
	o.notify(resultNotification(ticketID, minutes, result))
	o.settle()
	return result, nil
}

func resultNotification(ticketID string, minutes int, r *worklog.Result) Notification {
	n := Notification{TicketID: ticketID, Minutes: minutes, Result: r}
	switch {
	case r.SecondarySucceeded:
		n.Level = LevelSuccess
		n.Message = fmt.Sprintf("Logged %dm to %s in Jira and Productive", minutes, ticketID)
	case r.SecondarySkipped:
		n.Level = LevelSuccess
		n.Message = fmt.Sprintf("Logged %dm to %s in Jira", minutes, ticketID)
	default:
		n.Level = LevelWarning
		n.Message = fmt.Sprintf("Logged %dm to %s in Jira only (Productive failed: %s)", minutes, ticketID, r.SecondaryError)
		n.Error = r.SecondaryError
	}
	return n
}

// record appends a journal entry. Journal failures never fail the log.
func (o *Orchestrator) record(ctx context.Context, trigger, ticketID, projectKey string, minutes int, description string, r *worklog.Result) {
	entry := &storage.JournalEntry{
		WorkspaceID:         o.workspaceID,
		TicketID:            ticketID,
		ProjectKey:          projectKey,
		Minutes:             minutes,
		Description:         description,
		Trigger:             trigger,
		PrimarySucceeded:    r.PrimarySucceeded,
		SecondarySucceeded:  r.SecondarySucceeded,
		SecondarySkipped:    r.SecondarySkipped,
		SecondaryError:      r.SecondaryError,
		JiraWorklogID:       r.JiraWorklogID,
		TimeEntryID:         r.TimeEntryID,
		ProductiveProjectID: r.ProjectID,
		ProductiveServiceID: r.ServiceID,
		LoggedAt:            o.now(),
	}
	if err := o.store.AppendEntry(ctx, entry); err != nil {
		o.logger.WarnContext(ctx, "journal append failed", "error", err)
	}
}

func (o *Orchestrator) persist(last *storage.LastBranchInfo) {
	o.settings.LastBranchInfo = last
	o.saveSettings()
}

func (o *Orchestrator) saveSettings() {
	o.settings.UpdatedAt = o.now()
	s := o.settings
	if err := o.store.SaveSettings(context.Background(), o.workspaceID, &s); err != nil {
		o.logger.Warn("saving automation settings failed", "error", err)
	}
}

// handleTrackerError suspends on authentication failures. Other tracker
// errors only affect the current event.
func (o *Orchestrator) handleTrackerError(ctx context.Context, err error) {
	if tracker.IsAuthError(err) {
		o.deauthenticate(ctx, err)
		o.notify(Notification{Level: LevelError, Message: "Jira authentication failed, automation paused", Error: err.Error()})
		return
	}
	o.logger.WarnContext(ctx, "tracker call failed", "error", err)
}

// deauthenticate suspends automation and schedules the next automatic
// credential check. A running timer is stopped; its time is kept for a
// later submit.
func (o *Orchestrator) deauthenticate(ctx context.Context, err error) {
	o.rejected = true
	o.scheduleAuthRetry()
	if !o.authenticated {
		return
	}
	o.authenticated = false
	o.changed = true
	if o.timer.Stop() {
		o.metrics.SetTimerRunning(false)
	}
	o.logger.WarnContext(ctx, "automation suspended", "error", err, "retry_in", o.authBackoff)
}

// scheduleAuthRetry pushes the next automatic check out, doubling the
// delay on each consecutive failure.
func (o *Orchestrator) scheduleAuthRetry() {
	if o.authBackoff == 0 {
		o.authBackoff = o.authRetry
	} else {
		o.authBackoff = min(2*o.authBackoff, maxAuthRetry)
	}
	o.nextAuthCheck = o.now().Add(o.authBackoff)
}

// retryAuthentication runs CheckAuthentication when the orchestrator is
// suspended and a check is due. It reports whether a check ran.
func (o *Orchestrator) retryAuthentication(ctx context.Context) bool {
	o.mu.Lock()
	due := !o.authenticated && o.auth != nil && !o.loggedOut && !o.now().Before(o.nextAuthCheck)
	if due {
		// Claims the slot so concurrent callers do not verify twice.
		o.nextAuthCheck = o.now().Add(o.authRetry)
	}
	o.mu.Unlock()
	if !due {
		return false
	}
	if err := o.CheckAuthentication(ctx); err != nil {
		o.logger.WarnContext(ctx, "credential check failed", "error", err)
	}
	return true
}

// CheckAuthentication verifies credentials. On success automation resumes
// and the current branch is resolved again. Only an authentication failure
// suspends automation: when the tracker cannot be reached and credentials
// were not rejected before, automation resumes and the error is still
// returned.
func (o *Orchestrator) CheckAuthentication(ctx context.Context) error {
	o.lock()
	defer o.unlock()

	var verifyErr error
	if o.auth != nil {
		var err error
		o.suspend(func() { err = o.auth.Verify(ctx) })
		switch {
		case err == nil:
		case tracker.IsAuthError(err):
			o.deauthenticate(ctx, err)
			return fmt.Errorf("verify credentials: %w", err)
		case o.rejected:
			o.scheduleAuthRetry()
			return fmt.Errorf("verify credentials: %w", err)
		default:
			o.logger.WarnContext(ctx, "could not verify credentials, continuing", "error", err)
			verifyErr = fmt.Errorf("verify credentials: %w", err)
		}
		if err == nil && o.rejected {
			o.notify(Notification{Level: LevelInfo, Message: "Jira authentication restored"})
		}
		if err == nil {
			o.rejected = false
		}
	}
	if !o.authenticated {
		o.logger.Info("authenticated, automation resumed")
	}
	o.authenticated = true
	o.loggedOut = false
	o.authBackoff = 0
	o.changed = true

	if info, ok := o.watcher.GetCurrentBranchInfo(o.repo); ok {
		o.repo = info.Path
		o.branch = info.Branch
	}
	o.branchSeq++
	seq := o.branchSeq

	if id, _ := o.timer.Ticket(); id != "" && o.timer.Branch() == o.branch {
		if o.settings.AutoStart && !o.flag(o.cfg.AutoStartOnBranchSwitch, true) {
			o.autoStart(ctx)
		}
		return verifyErr
	}
	o.resolveBranch(ctx, o.branch, seq, false)
	return verifyErr
}

// Logout suspends automation until the next successful CheckAuthentication.
func (o *Orchestrator) Logout() {
	o.lock()
	defer o.unlock()
	o.deauthenticate(context.Background(), ErrNotAuthenticated)
	o.loggedOut = true
}

// StartTimer starts the timer for the current ticket.
func (o *Orchestrator) StartTimer(ctx context.Context) error {
	o.lock()
	defer o.unlock()

	if !o.authenticated {
		return ErrNotAuthenticated
	}
	if err := o.timer.Start(false); err != nil {
		return err
	}
	o.runSeq++
	o.metrics.RecordSessionStarted("manual")
	o.metrics.SetTimerRunning(true)
	o.changed = true
	return nil
}

// StopTimer stops the timer without logging. It reports whether a run
// ended.
func (o *Orchestrator) StopTimer(ctx context.Context) (bool, error) {
	o.lock()
	defer o.unlock()

	if !o.authenticated {
		return false, ErrNotAuthenticated
	}
	stopped := o.timer.Stop()
	if stopped {
		o.metrics.SetTimerRunning(false)
		o.changed = true
	}
	return stopped, nil
}

// SubmitTime stops the timer and logs the accumulated whole minutes.
func (o *Orchestrator) SubmitTime(ctx context.Context, description string) (*worklog.Result, error) {
	o.lock()
	defer o.unlock()

	if !o.authenticated {
		return nil, ErrNotAuthenticated
	}
	if id, _ := o.timer.Ticket(); id == "" {
		return nil, timer.ErrNoTicket
	}
	if o.logging {
		return nil, ErrLogInProgress
	}
	if o.timer.Stop() {
		o.metrics.SetTimerRunning(false)
		o.changed = true
	}
	if o.timer.ElapsedMinutes() < 1 {
		id, _ := o.timer.Ticket()
		o.notify(Notification{Level: LevelWarning, Message: "Less than a minute tracked, nothing to log", TicketID: id})
		return nil, worklog.ErrNothingToLog
	}
	return o.logSession(ctx, TriggerManual, description)
}

// ClearCurrentTicket stops the timer, discards its time and drops the
// ticket.
func (o *Orchestrator) ClearCurrentTicket() {
	o.lock()
	defer o.unlock()

	if o.timer.Stop() {
		o.metrics.SetTimerRunning(false)
	}
	o.timer.ResetAfterLog()
	o.timer.ClearTicket()
	o.summary = ""
	o.pending = nil
	o.persist(nil)
	o.changed = true
}

// SelectTicket resolves key and makes it the current ticket. It fails while
// the timer runs, and with ErrTimePending while unlogged time belongs to
// another ticket.
func (o *Orchestrator) SelectTicket(ctx context.Context, key string) (*ticket.Info, error) {
	o.lock()
	defer o.unlock()

	if !o.authenticated {
		return nil, ErrNotAuthenticated
	}
	if o.timer.Running() {
		return nil, timer.ErrAlreadyRunning
	}
	if o.holdsTimeForOther(strings.ToUpper(strings.TrimSpace(key))) {
		return nil, ErrTimePending
	}

	var (
		info *ticket.Info
		err  error
	)
	o.suspend(func() { info, err = o.resolver.ResolveTicket(ctx, key) })
	if err != nil {
		if tracker.IsAuthError(err) {
			o.deauthenticate(ctx, err)
		}
		return nil, err
	}
	if o.timer.Running() {
		return nil, timer.ErrAlreadyRunning
	}
	if o.holdsTimeForOther(info.TicketID) {
		return nil, ErrTimePending
	}

	o.pending = nil
	o.timer.SetTicket(info.TicketID, info.ProjectKey, o.branch)
	o.summary = info.Summary
	o.persist(&storage.LastBranchInfo{Branch: o.branch, TicketID: info.TicketID, ProjectKey: info.ProjectKey})
	o.changed = true
	return info, nil
}

// SetAutoStart toggles automatic starts and persists the setting.
func (o *Orchestrator) SetAutoStart(on bool) {
	o.lock()
	defer o.unlock()
	o.settings.AutoStart = on
	o.saveSettings()
	o.changed = true
}

// SetAutoLog toggles automatic logging and persists the setting.
func (o *Orchestrator) SetAutoLog(on bool) {
	o.lock()
	defer o.unlock()
	o.settings.AutoLog = on
	o.saveSettings()
	o.changed = true
}

func (o *Orchestrator) flag(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
