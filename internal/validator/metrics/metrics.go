package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the validator module.
type Metrics struct {
	// Currently healthy active validators
	HealthyValidators prometheus.Gauge

	// Registered active validators
	ActiveValidators prometheus.Gauge

	// Health check submissions by reported health
	HealthChecks *prometheus.CounterVec

	// Self-reported health check latencies
	ReportedLatency prometheus.Histogram
}

// New creates a new Metrics instance with all validator module metrics registered.
func New() *Metrics {
	return &Metrics{
		HealthyValidators: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "custodia_validators_healthy",
			Help: "Number of active validators currently considered healthy",
		}),
		ActiveValidators: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "custodia_validators_active",
			Help: "Number of registered active validators",
		}),
		HealthChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_validator_health_checks_total",
			Help: "Total health check submissions by reported health",
		}, []string{"healthy"}),
		ReportedLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_validator_reported_latency_seconds",
			Help:    "Self-reported validator latency from health checks",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncHealthCheck records one health check submission.
func (m *Metrics) IncHealthCheck(healthy bool) {
	if m != nil {
		label := "false"
		if healthy {
			label = "true"
		}
		m.HealthChecks.WithLabelValues(label).Inc()
	}
}

// ObserveReportedLatency records a validator's self-reported latency.
func (m *Metrics) ObserveReportedLatency(seconds float64) {
	if m != nil {
		m.ReportedLatency.Observe(seconds)
	}
}
