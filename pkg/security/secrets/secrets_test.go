package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"branchclock-hq/branchclock/pkg/config"
)

func envProvider(vars map[string]string) *EnvProvider {
	p := NewEnvProvider("")
	p.lookup = func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
	return p
}

func writeSecret(t *testing.T, dir, name, value string, mode os.FileMode) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
}

func TestEnvProvider(t *testing.T) {
	p := envProvider(map[string]string{"BRANCHCLOCK_SECRET_JIRA_API_TOKEN": "tok"})

	got, err := p.GetSecret(context.Background(), "jira-api-token")
	if err != nil || got != "tok" {
		t.Fatalf("GetSecret = %q, %v", got, err)
	}
	if _, err := p.GetSecret(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing secret error = %v", err)
	}
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "jira-api-token", "  tok\n", 0o600)
	writeSecret(t, dir, "loose", "tok", 0o644)
	p := NewFileProvider(dir)
	ctx := context.Background()

	tests := []struct {
		name    string
		secret  string
		want    string
		wantErr string
	}{
		{"trimmed value", "jira-api-token", "tok", ""},
		{"missing", "nope", "", "secret not found"},
		{"insecure mode", "loose", "", "insecure permissions"},
		{"traversal", "../etc/passwd", "", "invalid secret name"},
		{"hidden", ".env", "", "invalid secret name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.GetSecret(ctx, tt.secret)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("GetSecret = %q, %v", got, err)
			}
		})
	}
}

func TestManager_Order(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "shared", "from-file", 0o400)
	writeSecret(t, dir, "file-only", "file", 0o600)

	m := NewManager(nil, envProvider(map[string]string{"BRANCHCLOCK_SECRET_SHARED": "from-env"}), NewFileProvider(dir))
	ctx := context.Background()

	if got, _ := m.GetSecret(ctx, "shared"); got != "from-env" {
		t.Errorf("shared = %q, want env to win", got)
	}
	if got, _ := m.GetSecret(ctx, "file-only"); got != "file" {
		t.Errorf("file-only = %q", got)
	}
	if _, err := m.GetSecret(ctx, "nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestManager_Expand(t *testing.T) {
	m := NewManager(nil, envProvider(map[string]string{
		"BRANCHCLOCK_SECRET_USER": "dev",
		"BRANCHCLOCK_SECRET_HOST": "example.com",
	}))
	ctx := context.Background()

	got, err := m.Expand(ctx, "${secret:user}@${secret:host}")
	if err != nil || got != "dev@example.com" {
		t.Errorf("Expand = %q, %v", got, err)
	}
	got, err = m.Expand(ctx, "plain")
	if err != nil || got != "plain" {
		t.Errorf("Expand(plain) = %q, %v", got, err)
	}
	got, err = m.Expand(ctx, "${secret:absent}")
	if !errors.Is(err, ErrNotFound) || got != "${secret:absent}" {
		t.Errorf("Expand(absent) = %q, %v", got, err)
	}
}

func TestManager_ResolveConfig(t *testing.T) {
	m := NewManager(nil, envProvider(map[string]string{
		"BRANCHCLOCK_SECRET_JIRA_API_TOKEN":       "jira-tok",
		"BRANCHCLOCK_SECRET_PRODUCTIVE_API_TOKEN": "prod-tok",
	}))

	cfg := &config.Config{}
	cfg.Jira.Email = "dev@example.com"
	cfg.Jira.APIToken = "${secret:jira-api-token}"
	cfg.Productive.APIToken = "${secret:productive-api-token}"
	cfg.Productive.OrganizationID = "${secret:productive-org}"

	err := m.ResolveConfig(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "productive.organization_id") {
		t.Fatalf("err = %v, want the unresolved field named", err)
	}
	if cfg.Jira.APIToken != "jira-tok" || cfg.Productive.APIToken != "prod-tok" {
		t.Errorf("tokens = %q, %q", cfg.Jira.APIToken, cfg.Productive.APIToken)
	}
	if cfg.Jira.Email != "dev@example.com" {
		t.Errorf("plain field changed: %q", cfg.Jira.Email)
	}
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "jira-api-token", "tok", 0o600)

	m := FromConfig(config.SecretsConfig{Dir: dir, EnvPrefix: "BRANCHCLOCK_TEST_UNSET_"}, nil)
	if got, err := m.GetSecret(context.Background(), "jira-api-token"); err != nil || got != "tok" {
		t.Errorf("GetSecret = %q, %v", got, err)
	}
}
