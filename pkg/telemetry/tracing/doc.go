// Package tracing wires OpenTelemetry tracing for branchclock.
//
// When tracing is disabled New returns a Tracer backed by the noop provider,
// so callers always start spans unconditionally:
//
//	ctx, span := tracer.Start(ctx, "jira.add_worklog")
//	defer span.End()
//	tracing.SetTicketAttributes(span, "PROJ-42", "PROJ")
//
// When enabled, spans are batched to an OTLP gRPC collector and sampled with
// a parent-based ratio sampler. Tests use NewWithExporter with the SDK's
// in-memory exporter.
package tracing
