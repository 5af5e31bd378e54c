package config

import (
	"reflect"
	"testing"
	"time"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.listen_address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"server.read_timeout", cfg.Server.ReadTimeout, DefaultReadTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout},
		{"limits.watch_debounce", cfg.Limits.WatchDebounce, DefaultWatchDebounce},
		{"audit.backend", cfg.Audit.Backend, DefaultAuditBackend},
		{"audit.buffer", cfg.Audit.Buffer, DefaultAuditBuffer},
		{"audit.sqlite.path", cfg.Audit.SQLite.Path, DefaultAuditSQLitePath},
		{"audit.sqlite.driver", cfg.Audit.SQLite.Driver, DefaultAuditSQLiteDriver},
		{"audit.retention.max_age", cfg.Audit.Retention.MaxAge, DefaultAuditRetentionMaxAge},
		{"audit.retention.schedule", cfg.Audit.Retention.Schedule, DefaultAuditRetentionSchedule},
		{"telemetry.logging.level", cfg.Telemetry.Logging.Level, DefaultLoggingLevel},
		{"telemetry.logging.format", cfg.Telemetry.Logging.Format, DefaultLoggingFormat},
		{"telemetry.metrics.path", cfg.Telemetry.Metrics.Path, DefaultMetricsPath},
		{"telemetry.tracing.sampler", cfg.Telemetry.Tracing.Sampler, DefaultTracingSampler},
		{"telemetry.tracing.sample_ratio", cfg.Telemetry.Tracing.SampleRatio, DefaultTracingSampleRatio},
		{"telemetry.tracing.service_name", cfg.Telemetry.Tracing.ServiceName, DefaultTracingServiceName},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}

	if cfg.Telemetry.Metrics.Enabled {
		t.Error("ApplyDefaults must not flip booleans")
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{ListenAddress: "0.0.0.0:1"},
		Audit:  AuditConfig{Backend: "memory", Buffer: 7},
		Limits: LimitsConfig{Identities: map[string]ratelimit.Config{
			"fw": ratelimit.FixedWindowConfig(time.Second, 2),
			"lb": ratelimit.LeakyBucketConfig(3, 1),
		}},
	}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != "0.0.0.0:1" || cfg.Audit.Backend != "memory" || cfg.Audit.Buffer != 7 {
		t.Errorf("explicit values overwritten: %+v %+v", cfg.Server, cfg.Audit)
	}
	if got := cfg.Limits.Identities["fw"]; got != ratelimit.FixedWindowConfig(time.Second, 2) {
		t.Errorf("fixed window config changed: %+v", got)
	}
	if got := cfg.Limits.Identities["lb"]; got != ratelimit.LeakyBucketConfig(3, 1) {
		t.Errorf("leaky bucket config changed: %+v", got)
	}
}

func TestApplyDefaults_FixedWindowNotDefaulted(t *testing.T) {
	cfg := &Config{Limits: LimitsConfig{Identities: map[string]ratelimit.Config{
		"fw": {Kind: ratelimit.KindFixedWindow},
	}}}
	ApplyDefaults(cfg)

	if got := cfg.Limits.Identities["fw"]; got.Window != 0 || got.MaxRequests != 0 {
		t.Errorf("fixed window must be configured explicitly, got %+v", got)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg1 := Default()
	cfg2 := Default()
	ApplyDefaults(cfg2)

	if !reflect.DeepEqual(cfg1, cfg2) {
		t.Error("ApplyDefaults is not idempotent")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics enabled by default")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}
