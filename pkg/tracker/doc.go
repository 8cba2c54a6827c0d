// Package tracker holds the HTTP plumbing shared by the Jira and Productive
// clients: a JSON client with retry and tracing, and the error taxonomy the
// rest of branchclock switches on.
//
// Status mapping:
//
//	401, 403  -> *AuthError       (fatal: the orchestrator suspends itself)
//	404       -> *NotFoundError   (errors.Is(err, ErrNotFound))
//	429       -> *RateLimitError
//	other 4xx -> *APIError
//	5xx       -> *APIError after MaxRetries retries
//	transport -> *NetworkError    (no retry)
package tracker
