package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polkiloo/agrilink/internal/domain/model"
)

const namespace = "agrilink"

// Payment outcomes.
const (
	PaymentStarted   = "started"
	PaymentCaptured  = "captured"
	PaymentCancelled = "cancelled"
	PaymentFailed    = "failed"
)

// Reconciliation results.
const (
	ReconcileQueued   = "queued"
	ReconcileResolved = "resolved"
	ReconcileExpired  = "expired"
	ReconcileRetried  = "retried"
)

// Metrics owns the service collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	transitions     *prometheus.CounterVec
	payments        *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

// New registers the service collectors together with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Persisted order status transitions by target status.",
		}, []string{"status"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Gateway charges by outcome.",
		}, []string{"outcome"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Payment reconciliation events by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions,
		m.payments,
		m.reconciliations,
		m.requests,
		m.duration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OrderTransition(status model.OrderStatus) {
	m.transitions.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) Payment(outcome string) {
	m.payments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reconciliation(result string) {
	m.reconciliations.WithLabelValues(result).Inc()
}

// ObserveRequest records one served HTTP request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}
