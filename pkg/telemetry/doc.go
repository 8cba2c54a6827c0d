// Package telemetry groups branchclock's observability packages.
//
//   - logging: slog handler with context fields and credential redaction
//   - metrics: Prometheus collector for the watcher, trackers, worklog and timer
//   - tracing: OpenTelemetry tracer, noop when disabled
//   - health: liveness and readiness checks for the control server
package telemetry
