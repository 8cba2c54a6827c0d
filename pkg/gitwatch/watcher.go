package gitwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	gogit "github.com/go-git/go-git/v5"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/telemetry/metrics"
)

// Observation sources, used as metric labels.
const (
	sourceNotify = "notify"
	sourcePoll   = "poll"
)

// ErrStopped is returned by operations on a stopped watcher.
var ErrStopped = errors.New("watcher stopped")

// Options configures a Watcher.
type Options struct {
	// PollInterval is the fallback polling period.
	PollInterval time.Duration

	// Debounce is the quiet period after a notification before HEAD is read.
	Debounce time.Duration

	// Notifications enables fsnotify. When false, or when fsnotify cannot be
	// initialized, the watcher polls only.
	Notifications bool

	// WatchRefs also watches refs/heads.
	WatchRefs bool

	// EventBuffer is the capacity of the Events channel.
	EventBuffer int

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// OptionsFromConfig maps watcher configuration to Options.
func OptionsFromConfig(cfg config.WatcherConfig) Options {
	return Options{
		PollInterval:  cfg.PollInterval,
		Debounce:      cfg.Debounce,
		Notifications: cfg.Notifications == nil || *cfg.Notifications,
		WatchRefs:     cfg.WatchRefs == nil || *cfg.WatchRefs,
		EventBuffer:   cfg.EventBuffer,
	}
}

type repository struct {
	layout layout
	state  RepositoryState
	git    *gogit.Repository
}

// open lazily opens the go-git handle, retrying on the next call after a failure.
func (r *repository) open() (*gogit.Repository, error) {
	if r.git != nil {
		return r.git, nil
	}
	repo, err := openRepository(r.layout.root)
	if err != nil {
		return nil, err
	}
	r.git = repo
	return repo, nil
}

// Watcher tracks branch and commit state of a set of repositories.
type Watcher struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	repos   map[string]*repository
	order   []string
	fs      *fsnotify.Watcher
	running bool
	stopped bool

	debounce *Debouncer
	events   chan Event
	due      chan string
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a watcher. Call Watch for each repository and Start to begin
// delivering events.
func New(opts Options) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = config.DefaultDebounce
	}
	if opts.EventBuffer < 0 {
		opts.EventBuffer = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		opts:     opts,
		logger:   logger.With("component", "gitwatch"),
		metrics:  opts.Metrics,
		repos:    make(map[string]*repository),
		debounce: NewDebouncer(opts.Debounce),
		events:   make(chan Event, opts.EventBuffer),
		due:      make(chan string),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if opts.Notifications {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.logger.Warn("filesystem notifications unavailable, polling only", "error", err)
		} else {
			w.fs = fsw
		}
	}
	return w
}

// Events returns the event channel. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Watch starts tracking the repository at repoPath. The first read seeds
// its state and emits nothing. Watching a tracked repository is a no-op.
func (w *Watcher) Watch(repoPath string) error {
	root, err := filepath.Abs(repoPath)
	if err != nil {
		return fmt.Errorf("resolve repository path: %w", err)
	}
	l, err := resolveLayout(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if _, ok := w.repos[root]; ok {
		return nil
	}

	r := &repository{layout: l, state: RepositoryState{RepoPath: root}}
	w.reconcile(r, time.Now())
	w.repos[root] = r
	w.order = append(w.order, root)

	if w.fs != nil {
		w.addWatches(r)
	}

	w.logger.Info("watching repository",
		"repository", root,
		"branch", r.state.CurrentBranch,
		"commit", shortHash(r.state.CurrentCommit),
		"notifications", w.fs != nil)
	return nil
}

// Unwatch stops tracking repoPath and discards its state.
func (w *Watcher) Unwatch(repoPath string) {
	root, err := filepath.Abs(repoPath)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	r, ok := w.repos[root]
	if !ok {
		return
	}
	delete(w.repos, root)
	for i, p := range w.order {
		if p == root {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.debounce.Cancel(root)

	if w.fs != nil {
		_ = w.fs.Remove(r.layout.gitDir)
		_ = filepath.WalkDir(r.layout.refsDir(), func(path string, d os.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				_ = w.fs.Remove(path)
			}
			return nil
		})
	}
	w.logger.Info("stopped watching repository", "repository", root)
}

// Start launches the event loop. It returns an error if the watcher is
// already running or stopped. Cancelling ctx stops the loop; Stop must
// still be called to release resources.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.running = true

	go w.loop(ctx)

	w.logger.Info("watcher started",
		"poll_interval", w.opts.PollInterval,
		"debounce_ms", w.opts.Debounce.Milliseconds(),
		"repositories", len(w.repos))
	return nil
}

// Stop deregisters all watches, cancels pending debounce timers and the
// poll ticker, waits for the loop and closes the event channel. Nothing is
// emitted after Stop returns. Stop is idempotent.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	running := w.running
	w.mu.Unlock()

	close(w.stopCh)
	w.debounce.Stop()
	if running {
		<-w.doneCh
	}

	var err error
	if w.fs != nil {
		if cerr := w.fs.Close(); cerr != nil {
			err = fmt.Errorf("close fsnotify watcher: %w", cerr)
		}
	}
	close(w.events)

	w.logger.Info("watcher stopped")
	return err
}

// Running reports whether the event loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running && !w.stopped
}

// PollOnly reports whether the watcher runs without filesystem notifications.
func (w *Watcher) PollOnly() bool {
	return w.fs == nil
}

// GetCurrentBranchInfo reads the current state of repoPath without
// touching the last observed values. An empty path selects the first
// tracked repository. ok is false for an untracked path.
func (w *Watcher) GetCurrentBranchInfo(repoPath string) (info BranchInfo, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var r *repository
	if repoPath == "" {
		if len(w.order) == 0 {
			return BranchInfo{}, false
		}
		r = w.repos[w.order[0]]
	} else {
		root, err := filepath.Abs(repoPath)
		if err != nil {
			return BranchInfo{}, false
		}
		r, ok = w.repos[root]
		if !ok {
			return BranchInfo{}, false
		}
	}
	return w.snapshot(r), true
}

// Repositories returns a snapshot of every tracked repository in the order
// they were added.
func (w *Watcher) Repositories() []BranchInfo {
	w.mu.Lock()
	defer w.mu.Unlock()

	infos := make([]BranchInfo, 0, len(w.order))
	for _, root := range w.order {
		infos = append(infos, w.snapshot(w.repos[root]))
	}
	return infos
}

// States returns a copy of the tracked repository states.
func (w *Watcher) States() []RepositoryState {
	w.mu.Lock()
	defer w.mu.Unlock()

	states := make([]RepositoryState, 0, len(w.order))
	for _, root := range w.order {
		states = append(states, w.repos[root].state)
	}
	return states
}

func (w *Watcher) snapshot(r *repository) BranchInfo {
	branch, hash, err := readHead(r.layout, r.open)
	if err != nil {
		w.logger.Debug("snapshot read failed", "repository", r.layout.root, "error", err)
	}
	info := BranchInfo{Path: r.layout.root, Branch: branch, LastCommit: hash}
	if repo, err := r.open(); err == nil {
		info.RemoteURL = remoteURL(repo)
	}
	return info
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if w.fs != nil {
		fsEvents = w.fs.Events
		fsErrors = w.fs.Errors
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher loop stopped by context")
			return
		case <-w.stopCh:
			return

		case <-ticker.C:
			for _, root := range w.tracked() {
				if !w.observe(root, sourcePoll) {
					return
				}
			}

		case root := <-w.due:
			if !w.observe(root, sourceNotify) {
				return
			}

		case ev, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			w.handleNotification(ev)

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			w.logger.Warn("filesystem watch error", "error", err)
		}
	}
}

func (w *Watcher) tracked() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}

// handleNotification maps a raw fsnotify event to a repository and arms its
// debounce timer.
func (w *Watcher) handleNotification(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || strings.HasSuffix(ev.Name, ".lock") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	root, isRefs := w.ownerOf(ev.Name)
	if root == "" {
		return
	}

	// A branch named a/b creates a directory under refs/heads.
	if isRefs && ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addRefWatches(ev.Name)
		}
	}

	w.logger.Debug("git state notification", "repository", root, "path", ev.Name, "op", ev.Op.String())
	w.debounce.Trigger(root, func() {
		select {
		case w.due <- root:
		case <-w.stopCh:
		}
	})
}

// ownerOf returns the repository whose HEAD or refs contain path.
func (w *Watcher) ownerOf(path string) (root string, isRefs bool) {
	for r, repo := range w.repos {
		if path == repo.layout.headPath() {
			return r, false
		}
		if w.opts.WatchRefs && strings.HasPrefix(path, repo.layout.refsDir()+string(filepath.Separator)) {
			return r, true
		}
	}
	return "", false
}

// observe reads one repository and emits what changed. It returns false
// when the watcher stopped while an event was pending.
func (w *Watcher) observe(root, source string) bool {
	w.mu.Lock()
	r, ok := w.repos[root]
	var events []Event
	if ok {
		events = w.reconcile(r, time.Now())
	}
	w.mu.Unlock()

	if !ok {
		return true
	}
	w.metrics.RecordObservation(source)

	for _, ev := range events {
		select {
		case w.events <- ev:
			w.metrics.RecordEvent(string(ev.Kind()))
		case <-w.stopCh:
			return false
		}
	}
	return true
}

// reconcile diffs a fresh read against the last observed values and
// advances them. The branch event precedes the commit event. Caller holds mu.
func (w *Watcher) reconcile(r *repository, now time.Time) []Event {
	branch, hash, err := readHead(r.layout, r.open)
	if err != nil {
		w.metrics.RecordReadError()
		w.logger.Debug("cannot read git state", "repository", r.layout.root, "error", err)
	}

	s := &r.state
	s.CurrentBranch = branch
	s.CurrentCommit = hash

	var events []Event
	branchChanged := resolvable(s.LastObservedBranch) && resolvable(branch) && branch != s.LastObservedBranch
	if branchChanged {
		events = append(events, &BranchChangeEvent{
			RepoPath:  r.layout.root,
			OldBranch: s.LastObservedBranch,
			NewBranch: branch,
			Timestamp: now,
		})
		w.logger.Info("branch changed",
			"repository", r.layout.root,
			"from", s.LastObservedBranch,
			"to", branch)
	}

	if hash != "" && s.LastObservedCommit != "" && hash != s.LastObservedCommit {
		ev := &CommitEvent{
			RepoPath:       r.layout.root,
			Branch:         branch,
			Hash:           hash,
			OnBranchSwitch: branchChanged,
			Timestamp:      now,
		}
		if repo, err := r.open(); err == nil {
			msg, err := commitMessage(repo, hash)
			if err != nil {
				w.logger.Debug("commit message unavailable", "repository", r.layout.root, "error", err)
			}
			ev.Message = msg
		}
		events = append(events, ev)
		w.logger.Info("commit detected",
			"repository", r.layout.root,
			"branch", branch,
			"commit", shortHash(hash),
			"on_branch_switch", branchChanged)
	}

	if resolvable(branch) {
		s.LastObservedBranch = branch
	}
	if hash != "" {
		s.LastObservedCommit = hash
	}
	return events
}

// addWatches registers the git dir (for HEAD) and refs/heads. Failures are
// logged; polling still covers the repository. Caller holds mu.
func (w *Watcher) addWatches(r *repository) {
	if err := w.fs.Add(r.layout.gitDir); err != nil {
		w.logger.Warn("cannot watch git dir, relying on polling",
			"repository", r.layout.root, "error", err)
	}
	if w.opts.WatchRefs {
		w.addRefWatches(r.layout.refsDir())
	}
}

func (w *Watcher) addRefWatches(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.fs.Add(path); err != nil {
				w.logger.Debug("cannot watch refs directory", "path", path, "error", err)
			}
		}
		return nil
	})
}
