package config

import (
	"fmt"
	"maps"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "watcher.debounce").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateWorkspace(&cfg.Workspace)...)
	errs = append(errs, validateWatcher(&cfg.Watcher)...)
	errs = append(errs, validateJira(&cfg.Jira)...)
	errs = append(errs, validateProductive(&cfg.Productive)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateWorkspace(cfg *WorkspaceConfig) []FieldError {
	var errs []FieldError
	if len(cfg.Roots) == 0 {
		errs = append(errs, FieldError{Field: "workspace.roots", Message: "at least one root is required"})
	}
	for i, root := range cfg.Roots {
		if strings.TrimSpace(root) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("workspace.roots[%d]", i),
				Message: "root must not be empty",
			})
		}
	}
	return errs
}

func validateWatcher(cfg *WatcherConfig) []FieldError {
	var errs []FieldError
	if cfg.Debounce < MinDebounce {
		errs = append(errs, FieldError{
			Field:   "watcher.debounce",
			Message: fmt.Sprintf("debounce must be at least %s", MinDebounce),
		})
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, FieldError{Field: "watcher.poll_interval", Message: "poll interval must be positive"})
	}
	if cfg.EventBuffer < 0 {
		errs = append(errs, FieldError{Field: "watcher.event_buffer", Message: "event buffer must be non-negative"})
	}
	return errs
}

// validateJira allows an entirely empty section; the daemon then runs
// without logging. A partially filled section is an error.
func validateJira(cfg *JiraConfig) []FieldError {
	var errs []FieldError

	anySet := cfg.BaseURL != "" || cfg.Email != "" || cfg.APIToken != ""
	if anySet {
		if cfg.BaseURL == "" {
			errs = append(errs, FieldError{Field: "jira.base_url", Message: "base URL is required"})
		} else if msg := checkHTTPURL(cfg.BaseURL); msg != "" {
			errs = append(errs, FieldError{Field: "jira.base_url", Message: msg})
		}
		if cfg.Email == "" {
			errs = append(errs, FieldError{Field: "jira.email", Message: "email is required"})
		}
		if cfg.APIToken == "" {
			errs = append(errs, FieldError{Field: "jira.api_token", Message: "API token is required"})
		}
	}

	if cfg.APIVersion != "2" && cfg.APIVersion != "3" {
		errs = append(errs, FieldError{
			Field:   "jira.api_version",
			Message: fmt.Sprintf("invalid API version %q: must be '2' or '3'", cfg.APIVersion),
		})
	}
	errs = append(errs, validateRequestBudget("jira", cfg.Timeout.Seconds(), cfg.MaxRetries)...)
	return errs
}

func validateProductive(cfg *ProductiveConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled != nil && *cfg.Enabled {
		if cfg.APIToken == "" {
			errs = append(errs, FieldError{Field: "productive.api_token", Message: "API token is required when enabled"})
		}
		if cfg.OrganizationID == "" {
			errs = append(errs, FieldError{Field: "productive.organization_id", Message: "organization id is required when enabled"})
		}
	}
	if msg := checkHTTPURL(cfg.BaseURL); msg != "" {
		errs = append(errs, FieldError{Field: "productive.base_url", Message: msg})
	}
	seen := make(map[string]string, len(cfg.ProjectMapping))
	for _, key := range slices.Sorted(maps.Keys(cfg.ProjectMapping)) {
		id := cfg.ProjectMapping[key]
		if strings.TrimSpace(key) == "" || strings.TrimSpace(id) == "" {
			errs = append(errs, FieldError{
				Field:   "productive.project_mapping",
				Message: fmt.Sprintf("mapping %q=%q must have a non-empty key and id", key, id),
			})
		}
		upper := strings.ToUpper(key)
		if prev, ok := seen[upper]; ok {
			errs = append(errs, FieldError{
				Field:   "productive.project_mapping",
				Message: fmt.Sprintf("keys %q and %q differ only by case", prev, key),
			})
		}
		seen[upper] = key
	}
	errs = append(errs, validateRequestBudget("productive", cfg.Timeout.Seconds(), cfg.MaxRetries)...)
	return errs
}

func validateRequestBudget(prefix string, timeoutSeconds float64, maxRetries int) []FieldError {
	var errs []FieldError
	if timeoutSeconds < 0 {
		errs = append(errs, FieldError{Field: prefix + ".timeout", Message: "timeout must be positive"})
	}
	if maxRetries < 0 {
		errs = append(errs, FieldError{Field: prefix + ".max_retries", Message: "max retries must be non-negative"})
	}
	if maxRetries > 10 {
		errs = append(errs, FieldError{Field: prefix + ".max_retries", Message: "max retries exceeds reasonable limit (10)"})
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Driver {
	case "sqlite", "sqlite3":
		if cfg.Path == "" {
			errs = append(errs, FieldError{Field: "storage.path", Message: "path is required for SQLite drivers"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "storage.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite', 'sqlite3', or 'memory'", cfg.Driver),
		})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "storage.retention.days", Message: "retention days must be non-negative"})
	}
	if cfg.Retention.Days > 3650 {
		errs = append(errs, FieldError{
			Field:   "storage.retention.days",
			Message: "retention days exceeds reasonable limit (3650 days / 10 years)",
		})
	}
	if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "storage.retention.schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}
	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if !Bool(cfg.Enabled) {
		return errs
	}
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with '/'"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	return errs
}

func checkHTTPURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid URL format: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Sprintf("URL %q has no host", raw)
	}
	return ""
}
