// Package observability groups logging, metrics and tracing.
//
// Subpackages:
//   - logging: slog construction and context propagation
//   - metrics: Prometheus collectors and recorders
//   - tracing: OpenTelemetry spans for pipeline stages and the ops server
package observability
