package limits

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"turnstile-hq/turnstile/pkg/clock"
	"turnstile-hq/turnstile/pkg/limits/audit"
)

// DecisionRecorder receives every decision. Record must not block.
// *audit.Recorder implements it.
type DecisionRecorder interface {
	Record(ctx context.Context, rec audit.Record)
}

type settings struct {
	clock    clock.Clock
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	recorder DecisionRecorder
}

// Option configures a RateLimiter.
type Option func(*settings)

// WithClock sets the time source. Default: clock.System.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default() with component=limits.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithTracer wraps operations in spans. Default: a noop tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *settings) {
		s.tracer = t
	}
}

// WithRecorder sends decisions to r.
func WithRecorder(r DecisionRecorder) Option {
	return func(s *settings) {
		s.recorder = r
	}
}
