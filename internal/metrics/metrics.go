// Package metrics exposes Prometheus collectors for reconciliation and payouts.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconcile outcomes.
const (
	ResultCreated   = "created"
	ResultDuplicate = "duplicate"
	ResultRejected  = "rejected"
)

// Metrics groups the collectors the engine records into.
type Metrics struct {
	registry *prometheus.Registry

	PaymentsReconciled *prometheus.CounterVec
	PayoutsProcessed   *prometheus.CounterVec
	PayoutAmount       prometheus.Counter
	GroupsClosed       prometheus.Counter
	RPCDuration        *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		PaymentsReconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kameti",
			Name:      "payments_reconciled_total",
			Help:      "Payment completion events by outcome and entry path.",
		}, []string{"result", "source"}),
		PayoutsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kameti",
			Name:      "payouts_processed_total",
			Help:      "Payout attempts by outcome.",
		}, []string{"result"}),
		PayoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kameti",
			Name:      "payout_amount_minor_total",
			Help:      "Sum of disbursed payouts in minor units.",
		}),
		GroupsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kameti",
			Name:      "groups_closed_total",
			Help:      "Kametis that completed their cycle.",
		}),
		RPCDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kameti",
			Name:      "rpc_duration_seconds",
			Help:      "RPC latency by procedure and code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
	}
	reg.MustRegister(
		m.PaymentsReconciled,
		m.PayoutsProcessed,
		m.PayoutAmount,
		m.GroupsClosed,
		m.RPCDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveReconcile counts one reconcile outcome. A nil Metrics is a no-op.
func (m *Metrics) ObserveReconcile(result, source string) {
	if m == nil {
		return
	}
	m.PaymentsReconciled.WithLabelValues(result, source).Inc()
}

// ObservePayout counts one payout attempt and, on success, its amount.
func (m *Metrics) ObservePayout(result string, amount int64, closed bool) {
	if m == nil {
		return
	}
	m.PayoutsProcessed.WithLabelValues(result).Inc()
	if result != ResultCreated {
		return
	}
	m.PayoutAmount.Add(float64(amount))
	if closed {
		m.GroupsClosed.Inc()
	}
}

// ObserveRPC records the latency of one RPC.
func (m *Metrics) ObserveRPC(procedure, code string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCDuration.WithLabelValues(procedure, code).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
