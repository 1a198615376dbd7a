// Package observability provides structured logging, Prometheus metrics,
// health checking, panic recovery, and graceful shutdown for the service.
//
// The logger is a thin wrapper over log/slog emitting JSON, with helpers to
// carry request IDs and principal IDs through context. Metrics cover the HTTP
// surface plus the domain-specific counters: access decisions by outcome,
// grant cleanups, quota denials, and hybrid search latency.
package observability
