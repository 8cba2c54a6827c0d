package metrics

import (
	"time"

	"branchclock-hq/branchclock/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the registry and every metric subsystem. A nil Collector
// and a Collector built with Enabled=false both record nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	gitwatch *GitwatchMetrics
	tracker  *TrackerMetrics
	worklog  *WorklogMetrics
	timer    *TimerMetrics
}

// NewCollector creates a collector registered against registry. A nil
// registry gets a fresh one, never the global default registry.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.gitwatch = NewGitwatchMetrics(cfg, registry)
	c.tracker = NewTrackerMetrics(cfg, registry)
	c.worklog = NewWorklogMetrics(cfg, registry)
	c.timer = NewTimerMetrics(cfg, registry)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordObservation counts one pass over a repository.
// source is "notify", "poll" or "initial".
func (c *Collector) RecordObservation(source string) {
	if !c.enabled() {
		return
	}
	c.gitwatch.observations.WithLabelValues(source).Inc()
}

// RecordEvent counts an emitted state-change event ("branch" or "commit").
func (c *Collector) RecordEvent(kind string) {
	if !c.enabled() {
		return
	}
	c.gitwatch.events.WithLabelValues(kind).Inc()
}

// RecordReadError counts a failed HEAD or ref read.
func (c *Collector) RecordReadError() {
	if !c.enabled() {
		return
	}
	c.gitwatch.readErrors.Inc()
}

// RecordTrackerRequest records one HTTP call to a tracker.
//
// Parameters:
//   - tracker: "jira" or "productive"
//   - outcome: "success", "auth", "not_found", "rate_limited", "client_error",
//     "server_error" or "network"
//   - duration: wall time including retries
func (c *Collector) RecordTrackerRequest(tracker, outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.tracker.requests.WithLabelValues(tracker, outcome).Inc()
	c.tracker.duration.WithLabelValues(tracker).Observe(duration.Seconds())
}

// RecordWorklog records one logging attempt against a destination.
// Minutes are only added on success.
func (c *Collector) RecordWorklog(destination, outcome string, minutes int) {
	if !c.enabled() {
		return
	}
	c.worklog.attempts.WithLabelValues(destination, outcome).Inc()
	if outcome == "success" && minutes > 0 {
		c.worklog.minutes.WithLabelValues(destination).Add(float64(minutes))
	}
}

// SetTimerRunning updates the running gauge.
func (c *Collector) SetTimerRunning(running bool) {
	if !c.enabled() {
		return
	}
	if running {
		c.timer.running.Set(1)
	} else {
		c.timer.running.Set(0)
	}
}

// RecordSessionStarted counts a timer start. trigger is "auto" or "manual".
func (c *Collector) RecordSessionStarted(trigger string) {
	if !c.enabled() {
		return
	}
	c.timer.sessionsStarted.WithLabelValues(trigger).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
