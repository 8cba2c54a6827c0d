package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default values for configuration fields.
const (
	// Watcher defaults
	DefaultPollInterval = 30 * time.Second
	DefaultDebounce     = 300 * time.Millisecond
	MinDebounce         = 300 * time.Millisecond
	DefaultEventBuffer  = 64

	// Automation defaults
	DefaultAutoStart               = true
	DefaultAutoLog                 = true
	DefaultAutoStartOnBranchSwitch = true
	DefaultAutoStopOnCommit        = true
	DefaultAutoStopOnBranchSwitch  = false

	// Tracker defaults
	DefaultTrackerTimeout    = 15 * time.Second
	DefaultJiraAPIVersion    = "3"
	DefaultProductiveBaseURL = "https://api.productive.io/api/v2"

	// Secrets defaults
	DefaultSecretsEnvPrefix = "BRANCHCLOCK_SECRET_"

	// Storage defaults
	DefaultStorageDriver      = "sqlite"
	DefaultStorageBusyTimeout = 5 * time.Second
	DefaultRetentionDays      = 90
	DefaultRetentionSchedule  = "0 3 * * *"

	// Server defaults
	DefaultServerListenAddress   = "127.0.0.1:7410"
	DefaultServerReadTimeout     = 10 * time.Second
	DefaultServerWriteTimeout    = 60 * time.Second
	DefaultServerShutdownTimeout = 5 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "text"
	DefaultMetricsNamespace   = "branchclock"
	DefaultMetricsPath        = "/metrics"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "branchclock"
)

// Defaults returns a configuration with every default applied and no file.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Workspace defaults
	if len(cfg.Workspace.Roots) == 0 {
		cfg.Workspace.Roots = []string{"."}
	}
	if cfg.Workspace.ID == "" {
		if abs, err := filepath.Abs(cfg.Workspace.Roots[0]); err == nil {
			cfg.Workspace.ID = abs
		} else {
			cfg.Workspace.ID = cfg.Workspace.Roots[0]
		}
	}

	// Watcher defaults
	if cfg.Watcher.PollInterval == 0 {
		cfg.Watcher.PollInterval = DefaultPollInterval
	}
	if cfg.Watcher.Debounce == 0 {
		cfg.Watcher.Debounce = DefaultDebounce
	}
	if cfg.Watcher.Notifications == nil {
		cfg.Watcher.Notifications = BoolPtr(true)
	}
	if cfg.Watcher.WatchRefs == nil {
		cfg.Watcher.WatchRefs = BoolPtr(true)
	}
	if cfg.Watcher.EventBuffer == 0 {
		cfg.Watcher.EventBuffer = DefaultEventBuffer
	}

	// Automation defaults
	a := &cfg.Automation
	if a.AutoStart == nil {
		a.AutoStart = BoolPtr(DefaultAutoStart)
	}
	if a.AutoLog == nil {
		a.AutoLog = BoolPtr(DefaultAutoLog)
	}
	if a.AutoStartOnBranchSwitch == nil {
		a.AutoStartOnBranchSwitch = BoolPtr(DefaultAutoStartOnBranchSwitch)
	}
	if a.AutoStopOnCommit == nil {
		a.AutoStopOnCommit = BoolPtr(DefaultAutoStopOnCommit)
	}
	if a.AutoStopOnBranchSwitch == nil {
		a.AutoStopOnBranchSwitch = BoolPtr(DefaultAutoStopOnBranchSwitch)
	}

	// Jira defaults
	if cfg.Jira.Timeout == 0 {
		cfg.Jira.Timeout = DefaultTrackerTimeout
	}
	cfg.Jira.BaseURL = strings.TrimRight(cfg.Jira.BaseURL, "/")
	if cfg.Jira.APIVersion == "" {
		if strings.HasSuffix(cfg.Jira.BaseURL, "/rest/api/2") {
			cfg.Jira.APIVersion = "2"
		} else {
			cfg.Jira.APIVersion = DefaultJiraAPIVersion
		}
	}

	// Productive defaults
	if cfg.Productive.BaseURL == "" {
		cfg.Productive.BaseURL = DefaultProductiveBaseURL
	}
	cfg.Productive.BaseURL = strings.TrimRight(cfg.Productive.BaseURL, "/")
	if cfg.Productive.Timeout == 0 {
		cfg.Productive.Timeout = DefaultTrackerTimeout
	}
	if cfg.Productive.ServiceFallbackEnabled == nil {
		cfg.Productive.ServiceFallbackEnabled = BoolPtr(true)
	}

	// Secrets defaults
	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.Dir == "" {
		cfg.Secrets.Dir = defaultSecretsDir()
	}

	// Storage defaults
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DefaultStorageDriver
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStatePath()
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultStorageBusyTimeout
	}
	if cfg.Storage.Retention.Days == 0 {
		cfg.Storage.Retention.Days = DefaultRetentionDays
	}
	if cfg.Storage.Retention.Schedule == "" {
		cfg.Storage.Retention.Schedule = DefaultRetentionSchedule
	}

	// Server defaults
	if cfg.Server.Enabled == nil {
		cfg.Server.Enabled = BoolPtr(true)
	}
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultServerListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultServerShutdownTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Logging.Redact == nil {
		cfg.Telemetry.Logging.Redact = BoolPtr(true)
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
}

// defaultStatePath follows XDG_DATA_HOME, falling back to ~/.local/share.
func defaultStatePath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "branchclock", "state.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".branchclock", "state.db")
	}
	return filepath.Join(home, ".local", "share", "branchclock", "state.db")
}

// defaultSecretsDir follows XDG_CONFIG_HOME, falling back to ~/.config.
func defaultSecretsDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "branchclock", "secrets")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".branchclock", "secrets")
	}
	return filepath.Join(home, ".config", "branchclock", "secrets")
}
