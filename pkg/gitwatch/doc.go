// Package gitwatch detects branch switches and new commits in local git
// repositories.
//
// A Watcher combines two change sources: filesystem notifications on
// .git/HEAD and refs/heads (debounced), and a periodic poll. Both feed a
// single observe path that reads HEAD, diffs it against the last observed
// state and emits events, so a transition is reported exactly once no matter
// which source saw it first.
//
// Basic usage:
//
//	w := gitwatch.New(gitwatch.OptionsFromConfig(cfg.Watcher))
//	for _, repo := range gitwatch.DiscoverRepositories(cfg.Workspace.Roots, logger) {
//	    _ = w.Watch(repo)
//	}
//	w.Start(ctx)
//	defer w.Stop()
//	for ev := range w.Events() {
//	    ...
//	}
//
// Reading git state never fails loudly. An unreadable HEAD yields the branch
// "unknown" and is retried on the next notification or poll.
package gitwatch
