// Package server exposes the orchestrator over a local JSON control API.
//
// The API is what a UI (editor extension, status bar, TUI) drives branchclock
// through:
//
//	GET    /api/state            current timer and ticket
//	POST   /api/timer/start      start the timer for the current ticket
//	POST   /api/timer/stop       stop without logging
//	POST   /api/timer/submit     stop and log {"description": "..."}
//	PUT    /api/ticket           select a ticket {"ticket": "PROJ-42"}
//	DELETE /api/ticket           clear the ticket and discard its time
//	GET    /api/settings         automation toggles
//	PUT    /api/settings         {"auto_start": true, "auto_log": false}
//	GET    /api/repositories     watched repositories
//	GET    /api/history          journal entries, newest first
//	POST   /api/auth/check       verify Jira credentials again
//	GET    /health/live, /health/ready, /version, /metrics
//
// Errors are returned as {"error": {"code": "...", "message": "..."}}.
// Missing credentials map to 401, a missing ticket or a busy timer to 409
// and malformed bodies to 400. Selecting another ticket while unlogged time
// is pending is also a 409.
//
// # Usage
//
//	srv := server.New(cfg.Server, server.Options{
//		Controller:   orch,
//		Repositories: watcher,
//		Journal:      store,
//		Health:       checker,
//		Metrics:      collector,
//	})
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
//
// Start blocks until ctx is cancelled, then shuts down gracefully within
// server.shutdown_timeout.
package server
