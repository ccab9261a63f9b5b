package config

import "time"

// ApplyDefaults fills in default values for any zero-valued configuration
// fields. Booleans that default to true are handled by the loaders, which
// seed the config with DefaultConfig before unmarshalling.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:9911"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Injection.WatchDebounce == 0 {
		cfg.Injection.WatchDebounce = 100 * time.Millisecond
	}

	if cfg.History.Backend == "" {
		cfg.History.Backend = "memory"
	}
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = 10000
	}
	if cfg.History.BufferSize == 0 {
		cfg.History.BufferSize = 1000
	}
	if cfg.History.Retention.Days == 0 {
		cfg.History.Retention.Days = 30
	}
	if cfg.History.Retention.Schedule == "" {
		cfg.History.Retention.Schedule = "0 3 * * *"
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}
}

// DefaultConfig returns a configuration with all defaults applied. Boolean
// fields that default to true are set here so a missing YAML key keeps them
// enabled.
func DefaultConfig() *Config {
	cfg := &Config{
		Injection: InjectionConfig{Enabled: true},
		History:   HistoryConfig{Enabled: true},
		Telemetry: TelemetryConfig{Metrics: MetricsConfig{Enabled: true}},
	}
	ApplyDefaults(cfg)
	return cfg
}
