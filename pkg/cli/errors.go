package cli

import (
	"errors"
	"fmt"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/config"
	"branchclock-hq/branchclock/pkg/ticket"
	"branchclock-hq/branchclock/pkg/tracker"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitAuth        = 3
	ExitNotFound    = 4
	ExitUnreachable = 5
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *ConfigError
	var valErr config.ValidationError
	var netErr *tracker.NetworkError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		return ExitConfig
	case errors.Is(err, automation.ErrNotAuthenticated), tracker.IsAuthError(err):
		return ExitAuth
	case errors.Is(err, ticket.ErrTicketNotFound), errors.Is(err, tracker.ErrNotFound):
		return ExitNotFound
	case errors.As(err, &netErr):
		return ExitUnreachable
	default:
		return ExitFailure
	}
}
