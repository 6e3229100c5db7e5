// Package metrics holds the Prometheus collectors of the gateway.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verifications, the ledger and reconciliation.
type Metrics struct {
	VerificationOutcome *prometheus.CounterVec
	Refunds             *prometheus.CounterVec
	ProviderLatency     *prometheus.HistogramVec
	LedgerConflicts     prometheus.Counter
	ReconcileOutcome    *prometheus.CounterVec
	TopupsRequested     prometheus.Counter
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerificationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "avg_verification_outcomes_total",
			Help: "Settled verifications by method and outcome",
		}, []string{"method", "outcome"}), // outcome: success, failure, rejected

		Refunds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "avg_verification_refunds_total",
			Help: "Verification debits returned to the wallet, by method",
		}, []string{"method"}),

		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avg_provider_submit_duration_seconds",
			Help:    "Duration of provider submit calls by method",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),

		LedgerConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "avg_ledger_conflicts_total",
			Help: "Ledger transactions retried after a lock or serialization conflict",
		}),

		ReconcileOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "avg_reconciliation_checks_total",
			Help: "Wallet transaction checks by outcome",
		}, []string{"outcome"}), // outcome: completed, pending, failed, expired, error

		TopupsRequested: factory.NewCounter(prometheus.CounterOpts{
			Name: "avg_wallet_topups_requested_total",
			Help: "Top-up requests created",
		}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "avg_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveVerification records a verification outcome.
func (m *Metrics) ObserveVerification(method, outcome string) {
	if m != nil {
		m.VerificationOutcome.WithLabelValues(method, outcome).Inc()
	}
}

// IncrementRefund records a refunded verification.
func (m *Metrics) IncrementRefund(method string) {
	if m != nil {
		m.Refunds.WithLabelValues(method).Inc()
	}
}

// ObserveProviderLatency records the duration of one provider call.
func (m *Metrics) ObserveProviderLatency(method string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(method).Observe(d.Seconds())
	}
}

// IncrementLedgerConflict records a retried ledger transaction.
func (m *Metrics) IncrementLedgerConflict() {
	if m != nil {
		m.LedgerConflicts.Inc()
	}
}

// ObserveReconcile records one wallet transaction check.
func (m *Metrics) ObserveReconcile(outcome string) {
	if m != nil {
		m.ReconcileOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncrementTopup records a created top-up request.
func (m *Metrics) IncrementTopup() {
	if m != nil {
		m.TopupsRequested.Inc()
	}
}

// ObserveHTTPRequest records request latency.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}
