package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process level Prometheus metrics. Protocol lifecycle
// metrics live in internal/protocol/metrics.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all process level metrics.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicdesk_http_requests_total",
			Help: "Total HTTP requests by method, route pattern and status class",
		}, []string{"method", "route", "status"}),
	}
}

// IncrementHTTPRequest records one served request.
func (m *Metrics) IncrementHTTPRequest(method, route, status string) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	}
}
