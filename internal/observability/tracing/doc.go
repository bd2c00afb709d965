// Package tracing provides OpenTelemetry helpers: the module tracer, span
// helpers for pipeline stages and an HTTP middleware for the ops server.
//
// Spans go to whatever provider is installed with otel.SetTracerProvider;
// without one they are no-ops.
package tracing
