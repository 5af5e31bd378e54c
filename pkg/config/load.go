package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %q: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes, defaults, and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TURNSTILE_SECTION_FIELD (e.g., TURNSTILE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
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

// applyEnvOverrides applies environment variable overrides to the configuration.
// Values that fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("TURNSTILE_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("TURNSTILE_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("TURNSTILE_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("TURNSTILE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envInt("TURNSTILE_SERVER_HEALTH_RATE_LIMIT", &cfg.Server.HealthRateLimit)

	// Limits overrides
	envBool("TURNSTILE_LIMITS_WATCH", &cfg.Limits.Watch)

	// Audit overrides
	envBool("TURNSTILE_AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("TURNSTILE_AUDIT_BACKEND", &cfg.Audit.Backend)
	envBool("TURNSTILE_AUDIT_RECORD_ALLOWED", &cfg.Audit.RecordAllowed)
	envInt("TURNSTILE_AUDIT_BUFFER", &cfg.Audit.Buffer)
	envString("TURNSTILE_AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	envString("TURNSTILE_AUDIT_SQLITE_DRIVER", &cfg.Audit.SQLite.Driver)
	envDuration("TURNSTILE_AUDIT_RETENTION_MAX_AGE", &cfg.Audit.Retention.MaxAge)
	envString("TURNSTILE_AUDIT_RETENTION_SCHEDULE", &cfg.Audit.Retention.Schedule)
	if val := os.Getenv("TURNSTILE_AUDIT_RETENTION_MAX_RECORDS"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Audit.Retention.MaxRecords = n
		}
	}

	// Telemetry overrides
	envString("TURNSTILE_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TURNSTILE_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TURNSTILE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envBool("TURNSTILE_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TURNSTILE_TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	envString("TURNSTILE_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv("TURNSTILE_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
