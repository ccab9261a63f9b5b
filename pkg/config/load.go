package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Defaults are applied and the result is validated. Environment variables
// are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention FAULTLINE_SECTION_FIELD (e.g., FAULTLINE_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies FAULTLINE_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("FAULTLINE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("FAULTLINE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("FAULTLINE_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("FAULTLINE_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("FAULTLINE_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Injection overrides
	if val := os.Getenv("FAULTLINE_INJECTION_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Injection.Enabled = b
		}
	}
	if val := os.Getenv("FAULTLINE_INJECTION_PLAN_PATH"); val != "" {
		cfg.Injection.PlanPath = val
	}
	if val := os.Getenv("FAULTLINE_INJECTION_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Injection.Watch = b
		}
	}

	// History overrides
	if val := os.Getenv("FAULTLINE_HISTORY_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.History.Enabled = b
		}
	}
	if val := os.Getenv("FAULTLINE_HISTORY_BACKEND"); val != "" {
		cfg.History.Backend = val
	}
	if val := os.Getenv("FAULTLINE_HISTORY_SQLITE_PATH"); val != "" {
		cfg.History.SQLitePath = val
	}
	if val := os.Getenv("FAULTLINE_HISTORY_MAX_ENTRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.History.MaxEntries = i
		}
	}
	if val := os.Getenv("FAULTLINE_HISTORY_BUFFER_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.History.BufferSize = i
		}
	}
	if val := os.Getenv("FAULTLINE_HISTORY_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.History.Retention.Days = i
		}
	}
	if val := os.Getenv("FAULTLINE_HISTORY_RETENTION_SCHEDULE"); val != "" {
		cfg.History.Retention.Schedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("FAULTLINE_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("FAULTLINE_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("FAULTLINE_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("FAULTLINE_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
}
