package limits

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"turnstile-hq/turnstile/pkg/clock"
	"turnstile-hq/turnstile/pkg/limits/audit"
	"turnstile-hq/turnstile/pkg/limits/ratelimit"
	"turnstile-hq/turnstile/pkg/limits/registry"
)

// RateLimiter decides whether requests from registered identities are
// admitted.
//
// It owns a registry of per-identity limiters and injects the current time
// from its clock. The decision itself is made by the identity's strategy.
//
// # Example
//
//	rl := limits.New[string]()
//	_ = rl.AddIdentity("user-123", ratelimit.FixedWindowConfig(time.Minute, 100))
//
//	allowed, err := rl.Allow(ctx, "user-123")
//	if errors.Is(err, limits.ErrNotFound) {
//	    // Unknown caller
//	}
//	if !allowed {
//	    // Reject with 429
//	}
type RateLimiter[K comparable] struct {
	registry *registry.Registry[K]

	clock    clock.Clock
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	recorder DecisionRecorder

	// reconcileMu serializes Reconcile calls.
	reconcileMu sync.Mutex
	closeOnce   sync.Once
}

// New creates an empty RateLimiter.
func New[K comparable](opts ...Option) *RateLimiter[K] {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}

	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "limits")
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("turnstile/limits")
	}

	rl := &RateLimiter[K]{
		registry: registry.New[K](),
		clock:    s.clock,
		logger:   s.logger,
		metrics:  s.metrics,
		tracer:   s.tracer,
		recorder: s.recorder,
	}

	if rl.metrics != nil {
		rl.metrics.SetIdentities(nil)
	}

	return rl
}

// Allow reports whether a request from id is admitted now. It returns
// ErrNotFound if id is not registered.
func (rl *RateLimiter[K]) Allow(ctx context.Context, id K) (bool, error) {
	start := time.Now()

	ctx, span := rl.tracer.Start(ctx, "limits.Allow",
		trace.WithAttributes(attribute.String("turnstile.identity", fmt.Sprint(id))),
	)
	defer span.End()

	d, err := rl.registry.Decide(id, rl.clock.Now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allow failed")
		if rl.metrics != nil {
			rl.metrics.RecordDecision("", resultError, time.Since(start))
		}
		rl.logger.Debug("admission check failed", "identity", id, "error", err)
		return false, err
	}

	result := resultDenied
	if d.Allowed {
		result = resultAllowed
	}

	span.SetAttributes(
		attribute.String("turnstile.kind", string(d.Stats.Kind)),
		attribute.Bool("turnstile.allowed", d.Allowed),
		attribute.Int("turnstile.used", d.Stats.Used),
		attribute.Int("turnstile.limit", d.Stats.Limit),
	)

	if rl.metrics != nil {
		rl.metrics.RecordDecision(d.Stats.Kind, result, time.Since(start))
	}

	rl.logger.Debug("admission decision",
		"identity", id,
		"kind", d.Stats.Kind,
		"result", result,
		"used", d.Stats.Used,
		"limit", d.Stats.Limit,
	)

	if rl.recorder != nil {
		rl.recorder.Record(ctx, audit.Record{
			Identity:  fmt.Sprint(id),
			Kind:      d.Stats.Kind,
			Allowed:   d.Allowed,
			Used:      d.Stats.Used,
			Limit:     d.Stats.Limit,
			DecidedAt: d.At,
		})
	}

	return d.Allowed, nil
}

// AddIdentity registers id with a fresh limiter for cfg. It returns
// ErrInvalidConfig for an invalid cfg and ErrAlreadyExists if id is
// already registered.
func (rl *RateLimiter[K]) AddIdentity(id K, cfg ratelimit.Config) error {
	_, span := rl.tracer.Start(context.Background(), "limits.AddIdentity",
		trace.WithAttributes(
			attribute.String("turnstile.identity", fmt.Sprint(id)),
			attribute.String("turnstile.kind", string(cfg.Kind)),
		),
	)
	defer span.End()

	err := rl.registry.Add(id, cfg, rl.clock.Now())
	rl.afterMutation("add", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add failed")
		return err
	}

	rl.logger.Info("identity added",
		"identity", id,
		"kind", cfg.Kind,
		"limit", cfg.Limit(),
	)
	return nil
}

// RemoveIdentity unregisters id and discards its state. It returns
// ErrNotFound if id is not registered.
func (rl *RateLimiter[K]) RemoveIdentity(id K) error {
	_, span := rl.tracer.Start(context.Background(), "limits.RemoveIdentity",
		trace.WithAttributes(attribute.String("turnstile.identity", fmt.Sprint(id))),
	)
	defer span.End()

	err := rl.registry.Remove(id)
	rl.afterMutation("remove", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remove failed")
		return err
	}

	rl.logger.Info("identity removed", "identity", id)
	return nil
}

// Identities returns the registered identities in no particular order.
func (rl *RateLimiter[K]) Identities() []K {
	return rl.registry.Keys()
}

// Len returns the number of registered identities.
func (rl *RateLimiter[K]) Len() int {
	return rl.registry.Len()
}

// Stats returns a snapshot of id's limiter.
func (rl *RateLimiter[K]) Stats(id K) (ratelimit.Stats, error) {
	return rl.registry.Stats(id)
}

// IdentityConfig returns the configuration id was registered with.
func (rl *RateLimiter[K]) IdentityConfig(id K) (ratelimit.Config, error) {
	return rl.registry.Config(id)
}

// Close flushes the decision recorder if it is an io.Closer. The limiter
// itself holds no resources.
func (rl *RateLimiter[K]) Close() error {
	var err error
	rl.closeOnce.Do(func() {
		if c, ok := rl.recorder.(io.Closer); ok {
			err = c.Close()
		}
	})
	return err
}

func (rl *RateLimiter[K]) afterMutation(op string, err error) {
	if rl.metrics == nil {
		return
	}
	rl.metrics.RecordRegistryOp(op, err)
	if err == nil {
		rl.metrics.SetIdentities(rl.registry.CountByKind())
	}
}
