// Package server provides the admin HTTP API for the fault injector.
//
// The API registers and removes faults, inspects and releases blocked calls,
// and exposes recorded fault events, health, and Prometheus metrics.
package server
