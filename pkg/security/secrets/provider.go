// Package secrets resolves ${secret:name} references in credential fields.
//
// A reference is looked up in each provider in order: the environment
// (BRANCHCLOCK_SECRET_<NAME>) first, then one file per secret in the
// configured directory. Secret files must not be readable by group or others.
//
//	jira:
//	  api_token: ${secret:jira-api-token}
package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no provider holds a secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret returns ErrNotFound, possibly wrapped, for unknown names.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name labels the provider in logs ("env", "file").
	Name() string
}
