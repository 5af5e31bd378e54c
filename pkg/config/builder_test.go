package config

import (
	"time"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig creates a ConfigBuilder holding a valid default
// configuration with one fixed window identity, "test-client".
func NewTestConfig() *ConfigBuilder {
	cfg := Default()
	cfg.Limits.Identities = map[string]ratelimit.Config{
		"test-client": ratelimit.FixedWindowConfig(time.Minute, 10),
	}
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithIdentity registers or replaces an identity.
func (b *ConfigBuilder) WithIdentity(id string, c ratelimit.Config) *ConfigBuilder {
	if b.cfg.Limits.Identities == nil {
		b.cfg.Limits.Identities = make(map[string]ratelimit.Config)
	}
	b.cfg.Limits.Identities[id] = c
	return b
}

// WithAudit enables the audit trail on the given backend.
func (b *ConfigBuilder) WithAudit(backend string) *ConfigBuilder {
	b.cfg.Audit.Enabled = true
	b.cfg.Audit.Backend = backend
	return b
}

// WithRetentionSchedule sets the audit prune schedule.
func (b *ConfigBuilder) WithRetentionSchedule(schedule string) *ConfigBuilder {
	b.cfg.Audit.Retention.Schedule = schedule
	return b
}

// WithLoggingLevel sets the logging level.
func (b *ConfigBuilder) WithLoggingLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// WithTracingEnabled enables tracing against endpoint.
func (b *ConfigBuilder) WithTracingEnabled(enabled bool, endpoint string) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = enabled
	b.cfg.Telemetry.Tracing.Endpoint = endpoint
	return b
}
