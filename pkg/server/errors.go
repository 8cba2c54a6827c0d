package server

import (
	"errors"
	"net/http"

	"branchclock-hq/branchclock/pkg/automation"
	"branchclock-hq/branchclock/pkg/ticket"
	"branchclock-hq/branchclock/pkg/timer"
	"branchclock-hq/branchclock/pkg/tracker"
	"branchclock-hq/branchclock/pkg/worklog"
)

// requestError is a malformed request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

// ErrorBody is the error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed call.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps err to a status code and a stable error code.
func classify(err error) (int, string) {
	var reqErr *requestError
	var netErr *tracker.NetworkError
	var rateErr *tracker.RateLimitError

	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, automation.ErrNotAuthenticated), tracker.IsAuthError(err):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, timer.ErrNoTicket):
		return http.StatusConflict, "no_ticket"
	case errors.Is(err, timer.ErrAlreadyRunning):
		return http.StatusConflict, "timer_running"
	case errors.Is(err, automation.ErrLogInProgress):
		return http.StatusConflict, "log_in_progress"
	case errors.Is(err, automation.ErrTimePending):
		return http.StatusConflict, "time_pending"
	case errors.Is(err, worklog.ErrNothingToLog):
		return http.StatusUnprocessableEntity, "nothing_to_log"
	case errors.Is(err, ticket.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found"
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &netErr):
		return http.StatusBadGateway, "tracker_unreachable"
	default:
		var apiErr *tracker.APIError
		if errors.As(err, &apiErr) {
			return http.StatusBadGateway, "tracker_error"
		}
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error()}})
}
