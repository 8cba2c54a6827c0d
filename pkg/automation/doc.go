// Package automation wires the repository watcher, the ticket resolver, the
// timer and the worklog logger together.
//
// An Orchestrator consumes gitwatch events, keeps the current repository,
// branch and ticket, and starts, stops and logs the timer according to the
// automation settings. It is the single place the UI reads state from:
//
//	orch, err := automation.New(watcher, resolver, logger, auth, automation.Options{
//		Config:      cfg.Automation,
//		WorkspaceID: cfg.Workspace.ID,
//		Store:       store,
//	})
//	if err != nil {
//		return err
//	}
//	orch.SetOnStateChange(render)
//	orch.SetOnNotify(toast)
//	if err := orch.CheckAuthentication(ctx); err != nil {
//		slog.Warn("not signed in", "error", err)
//	}
//	go orch.Run(ctx)
//
// # Authentication
//
// Only a rejected credential suspends automation. While suspended, Run and
// HandleEvent check credentials again after a delay that starts at
// Options.AuthRetry and doubles up to fifteen minutes. Logout disables the
// automatic checks until CheckAuthentication is called explicitly.
//
// # Concurrency
//
// Events and manual actions are serialized on one mutex. The mutex is
// released around every tracker call; state is re-validated once the call
// returns, so an event handled in the meantime is never overwritten by a
// stale result. Callbacks run after the mutex is released and may call back
// into the Orchestrator.
package automation
