/*
Package observability provides metrics and structured-log lifecycle hooks for
the callflow engine.

Metrics are exported through a Prometheus registry; Hooks bridges engine
lifecycle events onto those metrics and onto a slog logger.
*/
package observability
