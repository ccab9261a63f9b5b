package config

import "time"

// Config is the root configuration structure for faultline.
type Config struct {
	// Server contains admin HTTP server configuration including listen
	// address and timeouts.
	Server ServerConfig `yaml:"server"`

	// Injection contains configuration for the fault injector itself,
	// including the optional declarative fault plan.
	Injection InjectionConfig `yaml:"injection"`

	// History contains configuration for fault event recording including
	// backend selection and retention.
	History HistoryConfig `yaml:"history"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the admin HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:9911").
	// Default: "127.0.0.1:9911"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are dropped.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// InjectionConfig contains configuration for the fault injector.
type InjectionConfig struct {
	// Enabled controls whether fault checks evaluate registered faults.
	// When false every check completes immediately with no fault.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// PlanPath is the path to a YAML fault plan applied at startup.
	// Empty means no plan is loaded.
	PlanPath string `yaml:"plan_path"`

	// Watch controls whether the plan file is watched for changes and
	// reapplied on edit. Requires PlanPath.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period before a plan reload fires.
	// Default: 100ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// HistoryConfig contains configuration for fault event recording.
type HistoryConfig struct {
	// Enabled controls whether triggered faults are recorded as events.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the event store: "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// MaxEntries bounds the memory backend; oldest events are evicted.
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`

	// BufferSize is the async recorder channel size.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// Retention contains retention pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains retention pruning configuration.
type RetentionConfig struct {
	// Days is the number of days to retain events. 0 keeps them forever.
	// Default: 30
	Days int `yaml:"days"`

	// Schedule is a cron expression for scheduled pruning.
	// Default: "0 3 * * *" (daily at 3 AM). Empty disables the scheduler.
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
