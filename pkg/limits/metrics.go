package limits

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

// Metrics contains Prometheus metrics for the rate limiter.
//
// Labels carry the strategy kind, never the identity, so cardinality stays
// bounded by the number of strategies.
type Metrics struct {
	decisions        *prometheus.CounterVec
	decisionDuration *prometheus.HistogramVec
	identities       *prometheus.GaugeVec
	registryOps      *prometheus.CounterVec

	reg prometheus.Registerer
}

// NewMetrics creates the rate limiter metrics and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,

		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_decisions_total",
				Help: "Total number of admission decisions",
			},
			[]string{"kind", "result"},
		),

		decisionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "turnstile_decision_duration_seconds",
				Help:    "Duration of admission decisions in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"kind"},
		),

		identities: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "turnstile_identities",
				Help: "Number of registered identities",
			},
			[]string{"kind"},
		),

		registryOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_registry_operations_total",
				Help: "Total number of identity registry operations",
			},
			[]string{"operation", "result"},
		),
	}
}

// RecordDecision records one decision. kind is empty when the identity was
// not found.
func (m *Metrics) RecordDecision(kind ratelimit.Kind, result string, duration time.Duration) {
	label := string(kind)
	if label == "" {
		label = "unknown"
	}
	m.decisions.WithLabelValues(label, result).Inc()
	m.decisionDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordRegistryOp records an add or remove.
func (m *Metrics) RecordRegistryOp(operation string, err error) {
	result := "ok"
	if err != nil {
		result = resultError
	}
	m.registryOps.WithLabelValues(operation, result).Inc()
}

// SetIdentities sets the identity gauge for every strategy.
func (m *Metrics) SetIdentities(counts map[ratelimit.Kind]int) {
	for _, kind := range ratelimit.Kinds {
		m.identities.WithLabelValues(string(kind)).Set(float64(counts[kind]))
	}
}

// DropCounter is implemented by audit recorders.
type DropCounter interface {
	Dropped() uint64
}

// ObserveAuditDrops exports the recorder's drop count as
// turnstile_audit_dropped_total.
func (m *Metrics) ObserveAuditDrops(dc DropCounter) {
	promauto.With(m.reg).NewCounterFunc(
		prometheus.CounterOpts{
			Name: "turnstile_audit_dropped_total",
			Help: "Total number of audit records dropped because the buffer was full",
		},
		func() float64 { return float64(dc.Dropped()) },
	)
}
