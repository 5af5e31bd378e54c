package config

import (
	"time"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// Limits defaults
	DefaultWatchDebounce = 500 * time.Millisecond

	// Audit defaults
	DefaultAuditBackend           = "sqlite"
	DefaultAuditBuffer            = 1000
	DefaultAuditWriteTimeout      = 5 * time.Second
	DefaultAuditSQLitePath        = "data/audit.db"
	DefaultAuditSQLiteDriver      = "sqlite"
	DefaultAuditSQLiteBusyTimeout = 5 * time.Second
	DefaultAuditRetentionMaxAge   = 7 * 24 * time.Hour
	DefaultAuditRetentionSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "turnstile"
	DefaultOTLPTimeout        = 10 * time.Second
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
//
// Boolean fields that default to true (metrics.enabled) cannot be told apart
// from an explicit false after unmarshalling, so Default sets them instead.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyLimitsDefaults(&cfg.Limits)
	applyAuditDefaults(&cfg.Audit)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// Default returns a configuration with every default applied, including
// the boolean ones. LoadConfig unmarshals on top of it.
func Default() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// applyLimitsDefaults fills in identity configurations. An identity with no
// kind is a sliding window log, and its unset window and maximum default to
// 100 requests per 60 seconds. Identities decoded from YAML already carry
// these defaults (see ratelimit.Config.UnmarshalYAML), so an explicit zero
// in the file is left for Validate to reject.
func applyLimitsDefaults(cfg *LimitsConfig) {
	if cfg.WatchDebounce == 0 {
		cfg.WatchDebounce = DefaultWatchDebounce
	}

	def := ratelimit.DefaultSlidingWindowLogConfig()
	for id, ic := range cfg.Identities {
		if ic.Kind != "" {
			continue
		}
		ic.Kind = ratelimit.KindSlidingWindowLog
		if ic.Window == 0 {
			ic.Window = def.Window
		}
		if ic.MaxRequests == 0 {
			ic.MaxRequests = def.MaxRequests
		}
		cfg.Identities[id] = ic
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultAuditBackend
	}
	if cfg.Buffer == 0 {
		cfg.Buffer = DefaultAuditBuffer
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultAuditWriteTimeout
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultAuditSQLitePath
	}
	if cfg.SQLite.Driver == "" {
		cfg.SQLite.Driver = DefaultAuditSQLiteDriver
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if cfg.Retention.MaxAge == 0 {
		cfg.Retention.MaxAge = DefaultAuditRetentionMaxAge
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultAuditRetentionSchedule
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 && cfg.Tracing.Sampler == "ratio" {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.OTLP.Timeout == 0 {
		cfg.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}
