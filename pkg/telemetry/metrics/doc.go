// Package metrics provides Prometheus metrics for branchclock.
//
// # Metrics Categories
//
//   - Watcher: observations by source (notify, poll, initial), emitted
//     events by kind, and HEAD/ref read errors.
//   - Tracker: request count by tracker and outcome, request latency.
//   - Worklog: logging attempts by destination and outcome, minutes logged.
//   - Timer: running gauge and sessions started by trigger.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordObservation("poll")
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// All Record methods are safe on a nil *Collector, so components can take
// an optional collector without guarding each call.
package metrics
