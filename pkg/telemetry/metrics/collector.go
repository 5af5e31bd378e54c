package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"turnstile-hq/turnstile/pkg/config"
	"turnstile-hq/turnstile/pkg/limits"
)

// Collector owns the process's Prometheus registry. It registers the Go
// runtime and process collectors, a build info gauge, and the limiter
// metrics.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry
	limits   *limits.Metrics
}

// NewCollector creates a collector on a fresh registry.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, version)
//	rl := limits.New[string](limits.WithMetrics(collector.Limits()))
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg *config.MetricsConfig, version string) *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "turnstile_build_info",
		Help: "Build information; the value is always 1.",
		ConstLabels: prometheus.Labels{
			"version":    version,
			"go_version": runtime.Version(),
		},
	})
	buildInfo.Set(1)
	registry.MustRegister(buildInfo)

	return &Collector{
		config:   cfg,
		registry: registry,
		limits:   limits.NewMetrics(registry),
	}
}

// Limits returns the limiter metrics registered on this collector.
func (c *Collector) Limits() *limits.Metrics {
	return c.limits
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Path returns the configured metrics endpoint path.
func (c *Collector) Path() string {
	if c.config == nil || c.config.Path == "" {
		return config.DefaultMetricsPath
	}
	return c.config.Path
}
