package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"branchclock-hq/branchclock/pkg/config"
)

// refPattern matches ${secret:name}.
var refPattern = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager tries providers in order until one holds the secret.
type Manager struct {
	providers []Provider
	logger    *slog.Logger
}

// NewManager creates a manager. logger may be nil.
func NewManager(logger *slog.Logger, providers ...Provider) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{providers: providers, logger: logger.With("component", "secrets")}
}

// FromConfig builds the standard chain: environment, then cfg.Dir when set.
func FromConfig(cfg config.SecretsConfig, logger *slog.Logger) *Manager {
	providers := []Provider{NewEnvProvider(cfg.EnvPrefix)}
	if cfg.Dir != "" {
		providers = append(providers, NewFileProvider(cfg.Dir))
	}
	return NewManager(logger, providers...)
}

// GetSecret returns the first value found. Provider failures other than
// ErrNotFound stop the lookup.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		switch {
		case err == nil:
			m.logger.Debug("secret resolved", "name", name, "provider", p.Name())
			return value, nil
		case errors.Is(err, ErrNotFound):
			continue
		default:
			return "", fmt.Errorf("secret %q from %s: %w", name, p.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Expand replaces every reference in s. Values without references are
// returned unchanged.
func (m *Manager) Expand(ctx context.Context, s string) (string, error) {
	var errs []error
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := refPattern.FindStringSubmatch(ref)[1]
		value, err := m.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return value
	})
	return out, errors.Join(errs...)
}

// ResolveConfig expands the credential fields of cfg in place.
func (m *Manager) ResolveConfig(ctx context.Context, cfg *config.Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"jira.email", &cfg.Jira.Email},
		{"jira.api_token", &cfg.Jira.APIToken},
		{"productive.api_token", &cfg.Productive.APIToken},
		{"productive.organization_id", &cfg.Productive.OrganizationID},
		{"productive.person_id", &cfg.Productive.PersonID},
	}

	var errs []error
	for _, f := range fields {
		if !strings.Contains(*f.value, "${secret:") {
			continue
		}
		value, err := m.Expand(ctx, *f.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		*f.value = value
	}
	return errors.Join(errs...)
}
