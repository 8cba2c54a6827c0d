package config

import (
	"path/filepath"
	"testing"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg := &Config{}
	ApplyDefaults(cfg)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"poll interval", cfg.Watcher.PollInterval, DefaultPollInterval},
		{"debounce", cfg.Watcher.Debounce, DefaultDebounce},
		{"event buffer", cfg.Watcher.EventBuffer, DefaultEventBuffer},
		{"auto start", Bool(cfg.Automation.AutoStart), true},
		{"auto log", Bool(cfg.Automation.AutoLog), true},
		{"auto start on branch switch", Bool(cfg.Automation.AutoStartOnBranchSwitch), true},
		{"auto stop on commit", Bool(cfg.Automation.AutoStopOnCommit), true},
		{"auto stop on branch switch", Bool(cfg.Automation.AutoStopOnBranchSwitch), false},
		{"jira api version", cfg.Jira.APIVersion, "3"},
		{"productive base url", cfg.Productive.BaseURL, DefaultProductiveBaseURL},
		{"service fallback", Bool(cfg.Productive.ServiceFallbackEnabled), true},
		{"storage driver", cfg.Storage.Driver, "sqlite"},
		{"storage path", cfg.Storage.Path, filepath.Join("/data", "branchclock", "state.db")},
		{"retention days", cfg.Storage.Retention.Days, DefaultRetentionDays},
		{"retention schedule", cfg.Storage.Retention.Schedule, DefaultRetentionSchedule},
		{"listen address", cfg.Server.ListenAddress, DefaultServerListenAddress},
		{"log level", cfg.Telemetry.Logging.Level, "info"},
		{"log format", cfg.Telemetry.Logging.Format, "text"},
		{"redact", Bool(cfg.Telemetry.Logging.Redact), true},
		{"sample ratio", cfg.Telemetry.Tracing.SampleRatio, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if len(cfg.Workspace.Roots) != 1 || cfg.Workspace.Roots[0] != "." {
		t.Errorf("expected default root \".\", got %v", cfg.Workspace.Roots)
	}
	if !filepath.IsAbs(cfg.Workspace.ID) {
		t.Errorf("expected absolute workspace id, got %q", cfg.Workspace.ID)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Automation: AutomationConfig{AutoStart: BoolPtr(false)},
		Jira:       JiraConfig{BaseURL: "https://acme.atlassian.net/rest/api/2"},
		Storage:    StorageConfig{Driver: "memory"},
	}
	ApplyDefaults(cfg)

	if Bool(cfg.Automation.AutoStart) {
		t.Error("explicit auto_start=false was overwritten")
	}
	if cfg.Jira.APIVersion != "2" {
		t.Errorf("expected api version derived from base url, got %q", cfg.Jira.APIVersion)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected memory driver, got %q", cfg.Storage.Driver)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	first := *cfg
	ApplyDefaults(cfg)

	if cfg.Workspace.ID != first.Workspace.ID || cfg.Storage.Path != first.Storage.Path {
		t.Error("ApplyDefaults is not idempotent")
	}
}

func TestProductiveEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  ProductiveConfig
		want bool
	}{
		{"no credentials", ProductiveConfig{}, false},
		{"token only", ProductiveConfig{APIToken: "t"}, false},
		{"token and org", ProductiveConfig{APIToken: "t", OrganizationID: "1"}, true},
		{"explicitly disabled", ProductiveConfig{APIToken: "t", OrganizationID: "1", Enabled: BoolPtr(false)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ProductiveEnabled(); got != tt.want {
				t.Errorf("ProductiveEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
