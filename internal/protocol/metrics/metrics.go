package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the protocol lifecycle.
type Metrics struct {
	// Applied transitions by previous status, new status and actor role
	Transitions *prometheus.CounterVec

	// Rejected transition attempts by rejection reason
	Denials *prometheus.CounterVec

	// Module side-effect hook failures by module type and target status
	HookFailures *prometheus.CounterVec

	// Protocols created by module type
	Created *prometheus.CounterVec

	// Sequence generation attempts that lost the row lock race
	SequenceContention prometheus.Counter

	// Full status update latency including the transaction
	UpdateLatency prometheus.Histogram
}

// New creates a Metrics instance with all protocol metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicdesk_protocol_transitions_total",
			Help: "Total applied status transitions by old status, new status and actor role",
		}, []string{"from", "to", "role"}),

		Denials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicdesk_protocol_transition_denials_total",
			Help: "Total rejected transition attempts by reason",
		}, []string{"reason"}), // reason: "matrix", "terminal", "completion_gate"

		HookFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicdesk_module_hook_failures_total",
			Help: "Total module side-effect hook failures by module type and target status",
		}, []string{"module", "status"}),

		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicdesk_protocols_created_total",
			Help: "Total protocols created by module type",
		}, []string{"module"}),

		SequenceContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civicdesk_sequence_contention_total",
			Help: "Total sequence generation attempts aborted by lock contention",
		}),

		UpdateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicdesk_protocol_update_status_duration_seconds",
			Help:    "Duration of full status updates including the transaction",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementTransition records an applied status transition.
func (m *Metrics) IncrementTransition(from, to, role string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to, role).Inc()
	}
}

// IncrementDenial records a rejected transition attempt.
func (m *Metrics) IncrementDenial(reason string) {
	if m != nil {
		m.Denials.WithLabelValues(reason).Inc()
	}
}

// IncrementHookFailure records a swallowed module hook error.
func (m *Metrics) IncrementHookFailure(module, status string) {
	if m != nil {
		m.HookFailures.WithLabelValues(module, status).Inc()
	}
}

// IncrementCreated records a created protocol.
func (m *Metrics) IncrementCreated(module string) {
	if m != nil {
		m.Created.WithLabelValues(module).Inc()
	}
}

// IncrementSequenceContention records a sequence attempt lost to contention.
func (m *Metrics) IncrementSequenceContention() {
	if m != nil {
		m.SequenceContention.Inc()
	}
}

// ObserveUpdateLatency records the duration of a status update.
func (m *Metrics) ObserveUpdateLatency(d time.Duration) {
	if m != nil {
		m.UpdateLatency.Observe(d.Seconds())
	}
}
