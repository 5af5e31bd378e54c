package config

import (
	"time"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

// Config is the root configuration structure for Turnstile.
// It contains all configuration sections for the service.
type Config struct {
	// Server contains the operations HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Limits contains the identity set and reload settings.
	Limits LimitsConfig `yaml:"limits"`

	// Audit contains decision audit trail configuration.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging, metrics, and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the operations HTTP server
// that serves metrics, health, and version endpoints.
type ServerConfig struct {
	// ListenAddress is the address the server listens on.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests on shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// HealthRateLimit caps health check requests per second.
	// Default: 0 (unlimited)
	HealthRateLimit int `yaml:"health_rate_limit"`
}

// LimitsConfig describes the registered identities.
type LimitsConfig struct {
	// Watch reloads the configuration file when it changes and reconciles
	// the identity set against it.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period after the last file event before
	// a reload.
	// Default: 500ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// Identities maps an identity to its limiter configuration.
	//
	//	identities:
	//	  api-key-123:
	//	    kind: leaky_bucket
	//	    capacity: 10
	//	    leak_rate: 2
	Identities map[string]ratelimit.Config `yaml:"identities"`
}

// AuditConfig contains decision audit trail configuration.
type AuditConfig struct {
	// Enabled controls whether decisions are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// RecordAllowed records admitted decisions as well as denials.
	// Default: false
	RecordAllowed bool `yaml:"record_allowed"`

	// Buffer is the size of the async recording buffer.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// WriteTimeout bounds a single storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention contains pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite audit backend configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// DisableWAL turns off write-ahead logging.
	// Default: false
	DisableWAL bool `yaml:"disable_wal"`

	// BusyTimeout is how long a write waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains audit retention configuration.
type RetentionConfig struct {
	// MaxAge deletes records older than this. Zero keeps records forever.
	// Default: 168h
	MaxAge time.Duration `yaml:"max_age"`

	// MaxRecords keeps at most this many records. Zero is unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// Schedule is a standard 5-field cron expression for pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// MaskIdentities shortens identity values in log entries to their
	// first four characters. Enable when identities are API keys.
	// Default: false
	MaskIdentities bool `yaml:"mask_identities"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "turnstile"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS on the exporter connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds a single export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
