package config

import "time"

// Config is the root configuration structure for branchclock.
type Config struct {
	// Workspace describes which folders are monitored.
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Watcher configures git state change detection.
	Watcher WatcherConfig `yaml:"watcher"`

	// Automation configures automatic timer start/stop and logging.
	Automation AutomationConfig `yaml:"automation"`

	// Jira configures the primary tracker.
	Jira JiraConfig `yaml:"jira"`

	// Productive configures the secondary tracker.
	Productive ProductiveConfig `yaml:"productive"`

	// Secrets configures how ${secret:name} credential references resolve.
	Secrets SecretsConfig `yaml:"secrets"`

	// Storage configures persisted settings and the worklog journal.
	Storage StorageConfig `yaml:"storage"`

	// Server configures the local control API.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// WorkspaceConfig describes the monitored workspace.
type WorkspaceConfig struct {
	// ID keys persisted state. Default: absolute path of the first root.
	ID string `yaml:"id"`

	// Roots are the workspace folders. Each is either a repository or a
	// folder whose immediate children are repositories.
	// Default: ["."]
	Roots []string `yaml:"roots"`
}

// WatcherConfig configures the repository state watcher.
type WatcherConfig struct {
	// PollInterval is the fallback polling period.
	// Default: 30s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Debounce is the delay between a raw notification and re-reading HEAD.
	// Must be at least 300ms.
	// Default: 300ms
	Debounce time.Duration `yaml:"debounce"`

	// Notifications enables filesystem notifications. When false, or when
	// notifications cannot be set up, only polling is used.
	// Default: true
	Notifications *bool `yaml:"notifications"`

	// WatchRefs also watches refs/heads for new commits.
	// Default: true
	WatchRefs *bool `yaml:"watch_refs"`

	// EventBuffer is the capacity of the event channel.
	// Default: 64
	EventBuffer int `yaml:"event_buffer"`
}

// AutomationConfig configures timer automation.
type AutomationConfig struct {
	// AutoStart starts the timer when a branch resolves to a ticket.
	// Default: true
	AutoStart *bool `yaml:"auto_start"`

	// AutoLog logs time when the timer is stopped automatically.
	// Default: true
	AutoLog *bool `yaml:"auto_log"`

	// AutoStartOnBranchSwitch restricts auto start to branch switches.
	// Default: true
	AutoStartOnBranchSwitch *bool `yaml:"auto_start_on_branch_switch"`

	// AutoStopOnCommit stops and logs the timer on a new commit.
	// Default: true
	AutoStopOnCommit *bool `yaml:"auto_stop_on_commit"`

	// AutoStopOnBranchSwitch stops and logs the outgoing ticket when the
	// branch changes.
	// Default: false
	AutoStopOnBranchSwitch *bool `yaml:"auto_stop_on_branch_switch"`
}

// JiraConfig configures the primary tracker.
type JiraConfig struct {
	// BaseURL is the REST API root, e.g. "https://acme.atlassian.net/rest/api/3".
	BaseURL string `yaml:"base_url"`

	// Email is the account email used for basic auth.
	Email string `yaml:"email"`

	// APIToken is the API token used for basic auth.
	APIToken string `yaml:"api_token"`

	// APIVersion selects the worklog comment format: "3" (ADF) or "2" (plain).
	// Default: derived from BaseURL, else "3"
	APIVersion string `yaml:"api_version"`

	// Timeout bounds each request.
	// Default: 15s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the retry budget for 5xx responses to reads. Worklog
	// and time entry writes are never retried.
	// Default: 0
	MaxRetries int `yaml:"max_retries"`
}

// ProductiveConfig configures the secondary tracker.
type ProductiveConfig struct {
	// Enabled turns secondary logging on. Default: true when a token is set.
	Enabled *bool `yaml:"enabled"`

	// BaseURL is the REST API root.
	// Default: "https://api.productive.io/api/v2"
	BaseURL string `yaml:"base_url"`

	// APIToken is sent as X-Auth-Token.
	APIToken string `yaml:"api_token"`

	// OrganizationID is sent as X-Organization-Id.
	OrganizationID string `yaml:"organization_id"`

	// PersonID pins the person time is logged for.
	PersonID string `yaml:"person_id"`

	// DefaultProjectID is used when no mapping or match exists.
	DefaultProjectID string `yaml:"default_project_id"`

	// DefaultServiceID is tried before service discovery.
	DefaultServiceID string `yaml:"default_service_id"`

	// ProjectMapping maps Jira project keys to Productive project ids.
	ProjectMapping map[string]string `yaml:"project_mapping"`

	// ServiceFallbackEnabled allows project-wide and any-service fallbacks.
	// Default: true
	ServiceFallbackEnabled *bool `yaml:"service_fallback_enabled"`

	// Timeout bounds each request.
	// Default: 15s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the retry budget for 5xx responses to reads. Worklog
	// and time entry writes are never retried.
	// Default: 0
	MaxRetries int `yaml:"max_retries"`
}

// SecretsConfig configures credential references. A credential field of
// the form "${secret:name}" is looked up in the environment first, then in
// Dir.
type SecretsConfig struct {
	// EnvPrefix namespaces secret environment variables.
	// Default: "BRANCHCLOCK_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir holds one file per secret, readable only by the owner.
	// Default: "$XDG_CONFIG_HOME/branchclock/secrets"
	Dir string `yaml:"dir"`
}

// StorageConfig configures persisted state.
type StorageConfig struct {
	// Driver is "sqlite" (pure Go), "sqlite3" (cgo) or "memory".
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file.
	// Default: "$XDG_DATA_HOME/branchclock/state.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long SQLite waits on locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Retention controls pruning of the worklog journal.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig controls journal pruning.
type RetentionConfig struct {
	// Days to keep journal entries. Zero keeps everything.
	// Default: 90
	Days int `yaml:"days"`

	// Schedule is a standard cron expression.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// ServerConfig configures the local control API.
type ServerConfig struct {
	// Enabled starts the control API with `run`.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// ListenAddress is "host:port".
	// Default: "127.0.0.1:7410"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout for requests.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout for responses. Submitting time waits on both trackers.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json", "text" or "console".
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file:line.
	AddSource bool `yaml:"add_source"`

	// Redact masks credentials and emails in log attributes.
	// Default: true
	Redact *bool `yaml:"redact"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled registers and records metrics.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes metric names.
	// Default: "branchclock"
	Namespace string `yaml:"namespace"`

	// Path is where the control server exposes metrics.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns tracing on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// SampleRatio in [0, 1].
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName reported to the collector.
	// Default: "branchclock"
	ServiceName string `yaml:"service_name"`
}

// Bool dereferences an optional flag.
func Bool(b *bool) bool {
	return b != nil && *b
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// ProductiveEnabled reports whether secondary logging should run.
func (c *ProductiveConfig) ProductiveEnabled() bool {
	if c.Enabled != nil && !*c.Enabled {
		return false
	}
	return c.APIToken != "" && c.OrganizationID != ""
}
