package config

import (
	"fmt"
	"net"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for errors.
func Validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is invalid: %w", cfg.Server.ListenAddress, err)
	}

	if cfg.Injection.Watch && cfg.Injection.PlanPath == "" {
		return fmt.Errorf("injection.watch requires injection.plan_path")
	}

	switch cfg.History.Backend {
	case "memory":
	case "sqlite":
		if cfg.History.SQLitePath == "" {
			return fmt.Errorf("history.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("history.backend %q is invalid (must be memory or sqlite)", cfg.History.Backend)
	}

	if cfg.History.Retention.Days < 0 {
		return fmt.Errorf("history.retention.days cannot be negative")
	}
	if cfg.History.Retention.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.History.Retention.Schedule); err != nil {
			return fmt.Errorf("history.retention.schedule %q is invalid: %w", cfg.History.Retention.Schedule, err)
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level %q is invalid", cfg.Telemetry.Logging.Level)
	}

	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format %q is invalid", cfg.Telemetry.Logging.Format)
	}

	return nil
}
