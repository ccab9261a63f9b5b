// Package logging configures the process-wide structured logger.
//
// Setup builds a slog.Logger from the telemetry configuration and installs
// it as the slog default, so components that log via slog.Default pick up
// the configured level and format.
package logging
