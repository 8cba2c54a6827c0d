package tracker

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound matches any *NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// AuthError represents rejected credentials (HTTP 401 or 403).
type AuthError struct {
	// Tracker is "jira" or "productive"
	Tracker string

	// StatusCode is 401 or 403
	StatusCode int

	// Message is the response body or a summary of it
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s authentication failed (status %d): %s", e.Tracker, e.StatusCode, e.Message)
}

// NotFoundError represents a missing resource (HTTP 404).
type NotFoundError struct {
	Tracker  string
	Resource string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Tracker, e.Resource)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// RateLimitError represents HTTP 429.
type RateLimitError struct {
	Tracker    string
	RetryAfter time.Duration
	Message    string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded (retry after %s): %s", e.Tracker, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("%s rate limit exceeded: %s", e.Tracker, e.Message)
}

// APIError represents any other non-2xx response.
type APIError struct {
	Tracker    string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Tracker, e.StatusCode, e.Message)
}

// NetworkError represents a transport failure or timeout.
type NetworkError struct {
	Tracker string
	Timeout bool
	Cause   error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s request timed out: %v", e.Tracker, e.Cause)
	}
	return fmt.Sprintf("%s request failed: %v", e.Tracker, e.Cause)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// ParseError represents a malformed response body.
type ParseError struct {
	Tracker     string
	RawResponse string
	Cause       error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s response parse error: %v", e.Tracker, e.Cause)
}

// Unwrap returns the decode error.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsAuthError reports whether err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Outcome buckets err into a metric label.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var (
		authErr  *AuthError
		rateErr  *RateLimitError
		apiErr   *APIError
		netErr   *NetworkError
		parseErr *ParseError
	)
	switch {
	case errors.As(err, &authErr):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &rateErr):
		return "rate_limited"
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 500 {
			return "server_error"
		}
		return "client_error"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &parseErr):
		return "parse_error"
	default:
		return "error"
	}
}
