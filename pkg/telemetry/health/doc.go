// Package health exposes liveness and readiness for the branchclock daemon.
//
// Components register checks with a severity. A failing Critical check
// (storage, the watcher loop) makes the daemon "unhealthy" and readiness
// returns 503. A failing Advisory check (tracker authentication) only makes
// it "degraded": the timer keeps working, logging does not, and readiness
// still answers 200 so local tooling keeps talking to the control API.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("storage", health.Critical, store.Ping)
//	checker.RegisterCheck("jira_auth", health.Advisory, orch.AuthCheck)
//	mux.Handle("/health/ready", checker.ReadinessHandler())
package health
