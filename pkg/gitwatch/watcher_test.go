package gitwatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/telemetry/metrics"
)

func pollOnly(interval time.Duration) Options {
	return Options{PollInterval: interval, Debounce: 20 * time.Millisecond}
}

func startWatcher(t *testing.T, opts Options, repos ...string) *Watcher {
	t.Helper()
	w := New(opts)
	for _, r := range repos {
		if err := w.Watch(r); err != nil {
			t.Fatalf("Watch(%s) error = %v", r, err)
		}
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcher_FirstObservationSeeds(t *testing.T) {
	r := newFakeRepo(t, "")
	w := startWatcher(t, pollOnly(10*time.Millisecond), r.root)

	noEvent(t, w, 80*time.Millisecond)

	states := w.States()
	if len(states) != 1 {
		t.Fatalf("states = %d", len(states))
	}
	if states[0].LastObservedBranch != "main" || states[0].LastObservedCommit != hashA {
		t.Errorf("state not seeded: %+v", states[0])
	}
}

func TestWatcher_BranchSwitchOrdering(t *testing.T) {
	r := newFakeRepo(t, "")
	r.setRef("feature/PROJ-42-add-login", hashB)
	w := startWatcher(t, pollOnly(10*time.Millisecond), r.root)

	r.checkout("feature/PROJ-42-add-login")

	first := nextEvent(t, w, time.Second)
	bc, ok := first.(*BranchChangeEvent)
	if !ok {
		t.Fatalf("first event = %T, want *BranchChangeEvent", first)
	}
	if bc.OldBranch != "main" || bc.NewBranch != "feature/PROJ-42-add-login" || bc.RepoPath != r.root {
		t.Errorf("unexpected branch event %+v", bc)
	}

	second := nextEvent(t, w, time.Second)
	ce, ok := second.(*CommitEvent)
	if !ok {
		t.Fatalf("second event = %T, want *CommitEvent", second)
	}
	if ce.Hash != hashB || ce.Branch != "feature/PROJ-42-add-login" || !ce.OnBranchSwitch {
		t.Errorf("unexpected commit event %+v", ce)
	}

	noEvent(t, w, 60*time.Millisecond)
}

func TestWatcher_NewCommit(t *testing.T) {
	r := newFakeRepo(t, "")
	w := startWatcher(t, pollOnly(10*time.Millisecond), r.root)

	r.setRef("main", hashB)

	ev := nextEvent(t, w, time.Second)
	ce, ok := ev.(*CommitEvent)
	if !ok {
		t.Fatalf("event = %T, want *CommitEvent", ev)
	}
	if ce.Hash != hashB || ce.Branch != "main" || ce.OnBranchSwitch {
		t.Errorf("unexpected commit event %+v", ce)
	}
}

func TestWatcher_CommitMessage(t *testing.T) {
	dir, repo := initRepo(t)
	w := startWatcher(t, pollOnly(10*time.Millisecond), dir)

	hash := commitFile(t, dir, repo, "login.go", "PROJ-42 add login form")

	ev := nextEvent(t, w, 2*time.Second)
	ce, ok := ev.(*CommitEvent)
	if !ok {
		t.Fatalf("event = %T, want *CommitEvent", ev)
	}
	if ce.Hash != hash || ce.Message != "PROJ-42 add login form" {
		t.Errorf("unexpected commit event %+v", ce)
	}
}

func TestWatcher_Idempotent(t *testing.T) {
	r := newFakeRepo(t, "")
	r.setRef("feature/OPS-7", hashA)
	w := startWatcher(t, pollOnly(10*time.Millisecond), r.root)

	r.checkout("feature/OPS-7")
	if ev := nextEvent(t, w, time.Second); ev.Kind() != KindBranchChange {
		t.Fatalf("event = %v", ev.Kind())
	}

	// Rewriting the same content must not fire again.
	r.checkout("feature/OPS-7")
	r.checkout("feature/OPS-7")
	noEvent(t, w, 80*time.Millisecond)
}

func TestWatcher_UnknownBranchIsNotATransition(t *testing.T) {
	r := newFakeRepo(t, "")
	w := startWatcher(t, pollOnly(10*time.Millisecond), r.root)

	head := filepath.Join(r.root, ".git", "HEAD")
	if err := os.Remove(head); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	r.checkout("main")
	noEvent(t, w, 60*time.Millisecond)

	if got := w.States()[0].LastObservedBranch; got != "main" {
		t.Errorf("last observed branch = %q, want main", got)
	}
}

func TestWatcher_RapidWritesDebounced(t *testing.T) {
	r := newFakeRepo(t, "")
	r.setRef("feature/PROJ-42", hashA)

	opts := Options{
		PollInterval:  time.Hour,
		Debounce:      150 * time.Millisecond,
		Notifications: true,
		WatchRefs:     true,
	}
	w := startWatcher(t, opts, r.root)
	if w.PollOnly() {
		t.Skip("filesystem notifications unavailable")
	}

	// A checkout touches HEAD more than once in quick succession.
	r.checkout("feature/PROJ-42")
	time.Sleep(50 * time.Millisecond)
	r.checkout("feature/PROJ-42")

	ev := nextEvent(t, w, 2*time.Second)
	if ev.Kind() != KindBranchChange {
		t.Fatalf("event = %v, want branch change", ev.Kind())
	}
	noEvent(t, w, 300*time.Millisecond)
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	r := newFakeRepo(t, "")
	w := New(pollOnly(10 * time.Millisecond))
	if err := w.Watch(r.root); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	r.setRef("main", hashB)
	select {
	case ev, ok := <-w.Events():
		if ok {
			t.Fatalf("event after Stop: %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}

	if err := w.Watch(r.root); err != ErrStopped {
		t.Errorf("Watch() after Stop error = %v, want ErrStopped", err)
	}
}

func TestWatcher_StopUnblocksPendingEmit(t *testing.T) {
	r := newFakeRepo(t, "")
	r.setRef("feature/PROJ-1", hashB)
	opts := pollOnly(10 * time.Millisecond)
	opts.EventBuffer = 0
	w := New(opts)
	if err := w.Watch(r.root); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	r.checkout("feature/PROJ-1")
	time.Sleep(50 * time.Millisecond)

	var stopped atomic.Bool
	go func() {
		_ = w.Stop()
		stopped.Store(true)
	}()
	deadline := time.Now().Add(time.Second)
	for !stopped.Load() {
		if time.Now().After(deadline) {
			t.Fatal("Stop blocked on an undelivered event")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatcher_Unwatch(t *testing.T) {
	r := newFakeRepo(t, "")
	w := startWatcher(t, pollOnly(10*time.Millisecond), r.root)

	w.Unwatch(r.root)
	r.setRef("main", hashB)
	noEvent(t, w, 60*time.Millisecond)

	if _, ok := w.GetCurrentBranchInfo(r.root); ok {
		t.Error("GetCurrentBranchInfo() found an unwatched repository")
	}
}

func TestWatcher_GetCurrentBranchInfo(t *testing.T) {
	a := newFakeRepo(t, "")
	b := newFakeRepo(t, "")
	b.setRef("fix/OPS-9", hashC)
	b.checkout("fix/OPS-9")

	w := New(pollOnly(time.Hour))
	t.Cleanup(func() { _ = w.Stop() })
	for _, r := range []string{a.root, b.root} {
		if err := w.Watch(r); err != nil {
			t.Fatal(err)
		}
	}

	first, ok := w.GetCurrentBranchInfo("")
	if !ok || first.Path != a.root || first.Branch != "main" {
		t.Errorf("first repository info = %+v, %v", first, ok)
	}

	info, ok := w.GetCurrentBranchInfo(b.root)
	if !ok || info.Branch != "fix/OPS-9" || info.LastCommit != hashC {
		t.Errorf("info = %+v, %v", info, ok)
	}

	if got := w.Repositories(); len(got) != 2 {
		t.Errorf("Repositories() = %d entries", len(got))
	}
}

func TestWatcher_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, reg)

	r := newFakeRepo(t, "")
	opts := pollOnly(10 * time.Millisecond)
	opts.Metrics = collector
	w := startWatcher(t, opts, r.root)

	r.setRef("main", hashB)
	nextEvent(t, w, time.Second)

	expected := `
# HELP test_gitwatch_events_total State-change events emitted by kind
# TYPE test_gitwatch_events_total counter
test_gitwatch_events_total{kind="commit"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_gitwatch_events_total"); err != nil {
		t.Error(err)
	}
}
