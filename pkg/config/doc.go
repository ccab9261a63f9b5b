// Package config defines the faultline configuration structure and loading.
//
// Configuration is read from a YAML file, filled in with defaults, overridden
// by FAULTLINE_* environment variables, and validated. Environment variables
// always take precedence over file values.
package config
