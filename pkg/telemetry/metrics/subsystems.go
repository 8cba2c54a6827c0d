package metrics

import (
	"branchclock-hq/branchclock/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// GitwatchMetrics tracks repository observation.
//
// Metrics:
//   - branchclock_gitwatch_observations_total{source}
//   - branchclock_gitwatch_events_total{kind}
//   - branchclock_gitwatch_read_errors_total
type GitwatchMetrics struct {
	observations *prometheus.CounterVec
	events       *prometheus.CounterVec
	readErrors   prometheus.Counter
}

// NewGitwatchMetrics creates and registers watcher metrics.
func NewGitwatchMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *GitwatchMetrics {
	gm := &GitwatchMetrics{
		observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "gitwatch",
				Name:      "observations_total",
				Help:      "Repository observations by trigger source",
			},
			[]string{"source"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "gitwatch",
				Name:      "events_total",
				Help:      "State-change events emitted by kind",
			},
			[]string{"kind"},
		),
		readErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "gitwatch",
				Name:      "read_errors_total",
				Help:      "Failed HEAD or ref reads",
			},
		),
	}

	registry.MustRegister(gm.observations, gm.events, gm.readErrors)
	return gm
}

// TrackerMetrics tracks HTTP calls to Jira and Productive.
//
// Metrics:
//   - branchclock_tracker_requests_total{tracker,outcome}
//   - branchclock_tracker_request_duration_seconds{tracker}
type TrackerMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewTrackerMetrics creates and registers tracker metrics.
func NewTrackerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *TrackerMetrics {
	tm := &TrackerMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "tracker",
				Name:      "requests_total",
				Help:      "Tracker API requests by outcome",
			},
			[]string{"tracker", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "tracker",
				Name:      "request_duration_seconds",
				Help:      "Tracker API request latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
			},
			[]string{"tracker"},
		),
	}

	registry.MustRegister(tm.requests, tm.duration)
	return tm
}

// WorklogMetrics tracks time logging.
//
// Metrics:
//   - branchclock_worklog_attempts_total{destination,outcome}
//   - branchclock_worklog_minutes_total{destination}
type WorklogMetrics struct {
	attempts *prometheus.CounterVec
	minutes  *prometheus.CounterVec
}

// NewWorklogMetrics creates and registers worklog metrics.
func NewWorklogMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *WorklogMetrics {
	wm := &WorklogMetrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "worklog",
				Name:      "attempts_total",
				Help:      "Logging attempts by destination and outcome",
			},
			[]string{"destination", "outcome"},
		),
		minutes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "worklog",
				Name:      "minutes_total",
				Help:      "Minutes successfully logged by destination",
			},
			[]string{"destination"},
		),
	}

	registry.MustRegister(wm.attempts, wm.minutes)
	return wm
}

// TimerMetrics tracks the timer state machine.
//
// Metrics:
//   - branchclock_timer_running
//   - branchclock_timer_sessions_started_total{trigger}
type TimerMetrics struct {
	running         prometheus.Gauge
	sessionsStarted *prometheus.CounterVec
}

// NewTimerMetrics creates and registers timer metrics.
func NewTimerMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *TimerMetrics {
	tm := &TimerMetrics{
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "timer",
				Name:      "running",
				Help:      "1 while the timer is running",
			},
		),
		sessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "timer",
				Name:      "sessions_started_total",
				Help:      "Timer sessions started by trigger",
			},
			[]string{"trigger"},
		),
	}

	registry.MustRegister(tm.running, tm.sessionsStarted)
	return tm
}
