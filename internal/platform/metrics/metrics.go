package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the core Prometheus metrics. Component-specific metrics
// (validator liveness) live in their own packages.
type Metrics struct {
	CommandsApplied  *prometheus.CounterVec
	ApplyLatency     prometheus.Histogram
	IdentitiesActive prometheus.Gauge
	GrantsActive     prometheus.Gauge
	BreachTriggers   prometheus.Counter
	AuditEntries     prometheus.Counter
}

// New creates and registers all core metrics.
func New() *Metrics {
	return &Metrics{
		CommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_commands_applied_total",
			Help: "Total commands processed by the sequencer, by kind and outcome",
		}, []string{"kind", "outcome"}),

		ApplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_command_apply_duration_seconds",
			Help:    "Duration of a single command application including audit append",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		IdentitiesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "custodia_identities_active",
			Help: "Number of identities currently in Active status",
		}),

		GrantsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "custodia_grants_active",
			Help: "Number of access grants currently in Active state",
		}),

		BreachTriggers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_breach_triggers_total",
			Help: "Total poison pill activations",
		}),

		AuditEntries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_entries_total",
			Help: "Total audit entries committed",
		}),
	}
}

// IncCommand records one applied or rejected command.
func (m *Metrics) IncCommand(kind, outcome string) {
	if m != nil {
		m.CommandsApplied.WithLabelValues(kind, outcome).Inc()
	}
}

// ObserveApply records command application latency in seconds.
func (m *Metrics) ObserveApply(seconds float64) {
	if m != nil {
		m.ApplyLatency.Observe(seconds)
	}
}

// IncBreach records one poison pill activation.
func (m *Metrics) IncBreach() {
	if m != nil {
		m.BreachTriggers.Inc()
	}
}

// IncAuditEntry records one committed audit entry.
func (m *Metrics) IncAuditEntry() {
	if m != nil {
		m.AuditEntries.Inc()
	}
}
