package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data, path)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides (BRANCHCLOCK_SECTION_FIELD). Environment
// variables always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := parse(data, path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigOrDefaults behaves like LoadConfigWithEnvOverrides but treats a
// missing file as an empty one, so the daemon can run on env vars alone.
func LoadConfigOrDefaults(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg = &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parse(data []byte, path string) (*Config, error) {
	cfg := &Config{}
	// Metrics default to on unless the file says otherwise.
	cfg.Telemetry.Metrics.Enabled = true
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Workspace overrides
	if val := os.Getenv("BRANCHCLOCK_WORKSPACE_ID"); val != "" {
		cfg.Workspace.ID = val
	}
	if val := os.Getenv("BRANCHCLOCK_WORKSPACE_ROOTS"); val != "" {
		cfg.Workspace.Roots = splitList(val)
	}

	// Watcher overrides
	envDuration("BRANCHCLOCK_WATCHER_POLL_INTERVAL", &cfg.Watcher.PollInterval)
	envDuration("BRANCHCLOCK_WATCHER_DEBOUNCE", &cfg.Watcher.Debounce)
	envBoolPtr("BRANCHCLOCK_WATCHER_NOTIFICATIONS", &cfg.Watcher.Notifications)
	envBoolPtr("BRANCHCLOCK_WATCHER_WATCH_REFS", &cfg.Watcher.WatchRefs)

	// Automation overrides
	envBoolPtr("BRANCHCLOCK_AUTOMATION_AUTO_START", &cfg.Automation.AutoStart)
	envBoolPtr("BRANCHCLOCK_AUTOMATION_AUTO_LOG", &cfg.Automation.AutoLog)
	envBoolPtr("BRANCHCLOCK_AUTOMATION_AUTO_START_ON_BRANCH_SWITCH", &cfg.Automation.AutoStartOnBranchSwitch)
	envBoolPtr("BRANCHCLOCK_AUTOMATION_AUTO_STOP_ON_COMMIT", &cfg.Automation.AutoStopOnCommit)
	envBoolPtr("BRANCHCLOCK_AUTOMATION_AUTO_STOP_ON_BRANCH_SWITCH", &cfg.Automation.AutoStopOnBranchSwitch)

	// Jira overrides
	envString("BRANCHCLOCK_JIRA_BASE_URL", &cfg.Jira.BaseURL)
	envString("BRANCHCLOCK_JIRA_EMAIL", &cfg.Jira.Email)
	envString("BRANCHCLOCK_JIRA_API_TOKEN", &cfg.Jira.APIToken)
	envString("BRANCHCLOCK_JIRA_API_VERSION", &cfg.Jira.APIVersion)
	envDuration("BRANCHCLOCK_JIRA_TIMEOUT", &cfg.Jira.Timeout)
	envInt("BRANCHCLOCK_JIRA_MAX_RETRIES", &cfg.Jira.MaxRetries)

	// Productive overrides
	envBoolPtr("BRANCHCLOCK_PRODUCTIVE_ENABLED", &cfg.Productive.Enabled)
	envString("BRANCHCLOCK_PRODUCTIVE_BASE_URL", &cfg.Productive.BaseURL)
	envString("BRANCHCLOCK_PRODUCTIVE_API_TOKEN", &cfg.Productive.APIToken)
	envString("BRANCHCLOCK_PRODUCTIVE_ORGANIZATION_ID", &cfg.Productive.OrganizationID)
	envString("BRANCHCLOCK_PRODUCTIVE_PERSON_ID", &cfg.Productive.PersonID)
	envString("BRANCHCLOCK_PRODUCTIVE_DEFAULT_PROJECT_ID", &cfg.Productive.DefaultProjectID)
	envString("BRANCHCLOCK_PRODUCTIVE_DEFAULT_SERVICE_ID", &cfg.Productive.DefaultServiceID)
	envBoolPtr("BRANCHCLOCK_PRODUCTIVE_SERVICE_FALLBACK_ENABLED", &cfg.Productive.ServiceFallbackEnabled)
	if val := os.Getenv("BRANCHCLOCK_PRODUCTIVE_PROJECT_MAPPING"); val != "" {
		// KEY=id,KEY2=id2
		if cfg.Productive.ProjectMapping == nil {
			cfg.Productive.ProjectMapping = make(map[string]string)
		}
		for _, pair := range splitList(val) {
			key, id, ok := strings.Cut(pair, "=")
			if ok && key != "" && id != "" {
				cfg.Productive.ProjectMapping[strings.TrimSpace(key)] = strings.TrimSpace(id)
			}
		}
	}

	// Secrets overrides
	envString("BRANCHCLOCK_SECRETS_DIR", &cfg.Secrets.Dir)

	// Storage overrides
	envString("BRANCHCLOCK_STORAGE_DRIVER", &cfg.Storage.Driver)
	envString("BRANCHCLOCK_STORAGE_PATH", &cfg.Storage.Path)
	envInt("BRANCHCLOCK_STORAGE_RETENTION_DAYS", &cfg.Storage.Retention.Days)
	envString("BRANCHCLOCK_STORAGE_RETENTION_SCHEDULE", &cfg.Storage.Retention.Schedule)

	// Server overrides
	envBoolPtr("BRANCHCLOCK_SERVER_ENABLED", &cfg.Server.Enabled)
	envString("BRANCHCLOCK_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)

	// Telemetry overrides
	envString("BRANCHCLOCK_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("BRANCHCLOCK_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	if val := os.Getenv("BRANCHCLOCK_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("BRANCHCLOCK_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	envString("BRANCHCLOCK_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv("BRANCHCLOCK_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envBoolPtr(name string, dst **bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = &b
		}
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
