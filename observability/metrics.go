// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine. Each instance owns
// its registry, so constructing one per process (or per test) is safe.
type Metrics struct {
	registry *prometheus.Registry

	// Lifecycle metrics
	AgreementsCreated     prometheus.Counter
	AgreementsInitialized prometheus.Counter
	AgreementsEntered     prometheus.Counter
	AgreementsExecuted    prometheus.Counter
	AgreementsSettled     *prometheus.CounterVec
	AgreementsExpired     prometheus.Counter

	// Callback metrics
	CallbacksRejected *prometheus.CounterVec

	// Oracle gateway metrics
	RequestsSubmitted *prometheus.CounterVec
	RequestsCancelled prometheus.Counter
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "optionflow"
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		AgreementsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agreements_created_total",
			Help:      "Deposits accepted and submitted for pricing.",
		}),
		AgreementsInitialized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agreements_initialized_total",
			Help:      "Agreements priced by the initialization callback.",
		}),
		AgreementsEntered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agreements_entered_total",
			Help:      "Agreements a counterparty entered.",
		}),
		AgreementsExecuted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agreements_executed_total",
			Help:      "Agreements executed by the counterparty.",
		}),
		AgreementsSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agreements_settled_total",
			Help:      "Settlement callbacks applied, by outcome.",
		}, []string{"outcome"}),
		AgreementsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agreements_expired_total",
			Help:      "Expired agreements withdrawn by their initiator.",
		}),
		CallbacksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_rejected_total",
			Help:      "Oracle callbacks rejected at the boundary, by reason.",
		}, []string{"reason"}),
		RequestsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_submitted_total",
			Help:      "Oracle requests recorded for delivery, by kind.",
		}, []string{"kind"}),
		RequestsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_cancelled_total",
			Help:      "Stuck oracle requests cancelled by the administrator.",
		}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
