package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"turnstile-hq/turnstile/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *config.TracingConfig
		wantErr bool
		enabled bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name:   "disabled tracing",
			config: &config.TracingConfig{Enabled: false, ServiceName: "test-service"},
		},
		{
			name: "enabled with always sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     "always",
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				OTLP:        config.OTLPConfig{Insecure: true, Timeout: time.Second},
			},
			enabled: true,
		},
		{
			name: "enabled with ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     "ratio",
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "test-service",
				OTLP:        config.OTLPConfig{Insecure: true},
			},
			enabled: true,
		},
		{
			name: "enabled without endpoint",
			config: &config.TracingConfig{
				Enabled: true,
				Sampler: "always",
			},
			wantErr: true,
		},
		{
			name: "invalid sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if tracer.Enabled() != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.enabled)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_ = tracer.Shutdown(ctx)
		})
	}
}

func TestTracer_Disabled(t *testing.T) {
	tracer, err := New(&config.TracingConfig{}, "test")
	if err != nil {
		t.Fatal(err)
	}

	ctx, span := tracer.Start(context.Background(), "op")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("expected a noop span from a disabled tracer")
	}
	if ctx == nil {
		t.Error("expected non-nil context")
	}
	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Errorf("ForceFlush on disabled tracer: %v", err)
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown on disabled tracer: %v", err)
	}
}

func TestNewWithExporter_ExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{Sampler: "always", ServiceName: "turnstile"}, "1.2.3", exporter)
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	ctx, parent := tracer.Start(context.Background(), "parent")
	_, child := tracer.Tracer().Start(ctx, "child")
	SetError(child, errors.New("boom"))
	child.End()
	parent.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatal(err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}

	c := byName["child"]
	if c.Parent.SpanID() != byName["parent"].SpanContext.SpanID() {
		t.Error("child span should be parented to parent span")
	}
	if c.Status.Code != codes.Error || c.Status.Description != "boom" {
		t.Errorf("unexpected child status: %+v", c.Status)
	}
	if len(c.Events) != 1 {
		t.Errorf("expected one error event, got %d", len(c.Events))
	}

	var service string
	for _, kv := range c.Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	if service != "turnstile" {
		t.Errorf("expected service.name turnstile, got %q", service)
	}
}

func TestNewWithExporter_NeverSampler(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{Sampler: "never"}, "test", exporter)
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "dropped")
	span.End()
	_ = tracer.ForceFlush(context.Background())

	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("expected no spans with never sampler, got %d", n)
	}
}

func TestSetError_Nil(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{Sampler: "always"}, "test", exporter)
	if err != nil {
		t.Fatal(err)
	}
	defer tracer.Shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "ok")
	SetError(span, nil)
	span.End()
	_ = tracer.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Status.Code != codes.Unset {
		t.Errorf("expected one span with unset status, got %+v", spans)
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{"", 1, false},
		{SamplerRatio, 1.5, true},
		{SamplerRatio, -0.1, true},
		{"sometimes", 0, true},
	}

	for _, tt := range tests {
		s, err := createSampler(tt.strategy, tt.ratio)
		if (err != nil) != tt.wantErr {
			t.Errorf("createSampler(%q, %v) error = %v, wantErr %v", tt.strategy, tt.ratio, err, tt.wantErr)
		}
		if !tt.wantErr && s == nil {
			t.Errorf("createSampler(%q, %v) returned nil sampler", tt.strategy, tt.ratio)
		}
	}
}
