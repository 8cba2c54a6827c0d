package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on branchclock spans.
const (
	AttrRepository = "branchclock.repository"
	AttrBranch     = "branchclock.branch"
	AttrTicket     = "branchclock.ticket"
	AttrProject    = "branchclock.project"
	AttrTracker    = "branchclock.tracker"
	AttrMinutes    = "branchclock.minutes"
	AttrConfidence = "branchclock.confidence"

	AttrHTTPMethod     = "http.request.method"
	AttrHTTPStatusCode = "http.response.status_code"
	AttrHTTPRoute      = "http.route"
	AttrRetryCount     = "http.request.resend_count"
)

// SetTicketAttributes tags a span with the ticket being worked on.
func SetTicketAttributes(span trace.Span, ticket, project string) {
	attrs := []attribute.KeyValue{attribute.String(AttrTicket, ticket)}
	if project != "" {
		attrs = append(attrs, attribute.String(AttrProject, project))
	}
	span.SetAttributes(attrs...)
}

// SetHTTPAttributes tags a tracker request span.
func SetHTTPAttributes(span trace.Span, tracker, method, route string, status, retries int) {
	span.SetAttributes(
		attribute.String(AttrTracker, tracker),
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatusCode, status),
		attribute.Int(AttrRetryCount, retries),
	)
}
