// Package telemetry groups observability concerns for faultline.
//
// Subpackages:
//
//   - logging: structured logging via log/slog
//
// Prometheus metrics for the injector live in pkg/inject and are exposed by
// the admin server's metrics endpoint.
package telemetry
