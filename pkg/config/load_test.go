package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "branchclock.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
workspace:
  roots: ["/src/app", "/src/lib"]
watcher:
  poll_interval: "10s"
  debounce: "500ms"
automation:
  auto_stop_on_branch_switch: true
jira:
  base_url: "https://acme.atlassian.net/rest/api/3/"
  email: "dev@acme.io"
  api_token: "jira-token"
productive:
  api_token: "prod-token"
  organization_id: "42"
  project_mapping:
    PROJ: "1001"
storage:
  driver: "memory"
telemetry:
  logging:
    level: "debug"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Workspace.ID != "/src/app" {
		t.Errorf("expected workspace id %q, got %q", "/src/app", cfg.Workspace.ID)
	}
	if cfg.Watcher.PollInterval != 10*time.Second {
		t.Errorf("expected poll interval 10s, got %v", cfg.Watcher.PollInterval)
	}
	if cfg.Watcher.Debounce != 500*time.Millisecond {
		t.Errorf("expected debounce 500ms, got %v", cfg.Watcher.Debounce)
	}
	if !Bool(cfg.Automation.AutoStopOnBranchSwitch) {
		t.Error("expected auto_stop_on_branch_switch to be true")
	}
	if !Bool(cfg.Automation.AutoStart) {
		t.Error("expected auto_start default true")
	}
	if cfg.Jira.BaseURL != "https://acme.atlassian.net/rest/api/3" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Jira.BaseURL)
	}
	if cfg.Jira.APIVersion != "3" {
		t.Errorf("expected api version 3, got %q", cfg.Jira.APIVersion)
	}
	if !cfg.Productive.ProductiveEnabled() {
		t.Error("expected productive to be enabled")
	}
	if cfg.Productive.ProjectMapping["PROJ"] != "1001" {
		t.Errorf("expected mapping PROJ=1001, got %v", cfg.Productive.ProjectMapping)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level debug, got %q", cfg.Telemetry.Logging.Level)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
}

func TestLoadConfig_MetricsDisabled(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
telemetry:
  metrics:
    enabled: false
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics disabled")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "watcher: [unclosed")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
watcher:
  debounce: "100ms"
storage:
  driver: memory
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Errors[0].Field != "watcher.debounce" {
		t.Errorf("expected watcher.debounce error, got %s", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
jira:
  base_url: "https://file.atlassian.net/rest/api/3"
  email: "file@acme.io"
  api_token: "file-token"
storage:
  driver: memory
`)

	t.Setenv("BRANCHCLOCK_JIRA_API_TOKEN", "env-token")
	t.Setenv("BRANCHCLOCK_WORKSPACE_ROOTS", "/a, /b")
	t.Setenv("BRANCHCLOCK_AUTOMATION_AUTO_LOG", "false")
	t.Setenv("BRANCHCLOCK_WATCHER_POLL_INTERVAL", "1m")
	t.Setenv("BRANCHCLOCK_PRODUCTIVE_PROJECT_MAPPING", "OPS=7,PROJ=9")
	t.Setenv("BRANCHCLOCK_TELEMETRY_TRACING_SAMPLE_RATIO", "0.25")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Jira.APIToken != "env-token" {
		t.Errorf("expected env token, got %q", cfg.Jira.APIToken)
	}
	if cfg.Jira.Email != "file@acme.io" {
		t.Errorf("expected file email preserved, got %q", cfg.Jira.Email)
	}
	if len(cfg.Workspace.Roots) != 2 || cfg.Workspace.Roots[1] != "/b" {
		t.Errorf("expected roots [/a /b], got %v", cfg.Workspace.Roots)
	}
	if cfg.Workspace.ID != "/a" {
		t.Errorf("expected workspace id derived from env roots, got %q", cfg.Workspace.ID)
	}
	if Bool(cfg.Automation.AutoLog) {
		t.Error("expected auto_log overridden to false")
	}
	if cfg.Watcher.PollInterval != time.Minute {
		t.Errorf("expected poll interval 1m, got %v", cfg.Watcher.PollInterval)
	}
	if cfg.Productive.ProjectMapping["OPS"] != "7" || cfg.Productive.ProjectMapping["PROJ"] != "9" {
		t.Errorf("unexpected mapping %v", cfg.Productive.ProjectMapping)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.25 {
		t.Errorf("expected sample ratio 0.25, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfigOrDefaults_MissingFile(t *testing.T) {
	t.Setenv("BRANCHCLOCK_STORAGE_DRIVER", "memory")

	cfg, err := LoadConfigOrDefaults(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("expected defaults, got error: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected env driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Server.ListenAddress != DefaultServerListenAddress {
		t.Errorf("expected default listen address, got %q", cfg.Server.ListenAddress)
	}
}

func TestLoadConfigOrDefaults_InvalidFileStillFails(t *testing.T) {
	path := writeConfig(t, "storage: {driver: postgres}")
	if _, err := LoadConfigOrDefaults(path); err == nil {
		t.Fatal("expected validation error for unsupported driver")
	}
}
