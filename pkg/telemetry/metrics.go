// Package telemetry exposes the Prometheus instrumentation for
// reconciliation runs.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus observability primitives for reconciliation.
type Metrics struct {
	runsTotal         *prometheus.CounterVec
	mismatchesTotal   *prometheus.CounterVec
	ordersChecked     prometheus.Counter
	lineItemsChecked  prometheus.Counter
	runDuration       *prometheus.HistogramVec
	amountDiscrepancy *prometheus.HistogramVec
}

// NewMetrics registers reconciliation metrics on the default registerer.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

func newMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	runsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_oracle_reconciliation_total",
		Help: "Completed reconciliation runs by worst outcome.",
	}, []string{"status"})

	mismatchesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_oracle_mismatch_total",
		Help: "Mismatch findings by classification and severity.",
	}, []string{"classification", "severity"})

	ordersChecked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_oracle_orders_checked_total",
		Help: "Orders compared against the simulator.",
	})

	lineItemsChecked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_oracle_line_items_checked_total",
		Help: "Line items compared against the simulator.",
	})

	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_oracle_reconciliation_duration_seconds",
		Help:    "Reconciliation run duration by scope.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120, 300},
	}, []string{"scope"})

	amountDiscrepancy := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_oracle_amount_discrepancy_cents",
		Help:    "Absolute amount discrepancy per mismatch, in cents.",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 50000},
	}, []string{"classification"})

	registerer.MustRegister(
		runsTotal,
		mismatchesTotal,
		ordersChecked,
		lineItemsChecked,
		runDuration,
		amountDiscrepancy,
	)

	return &Metrics{
		runsTotal:         runsTotal,
		mismatchesTotal:   mismatchesTotal,
		ordersChecked:     ordersChecked,
		lineItemsChecked:  lineItemsChecked,
		runDuration:       runDuration,
		amountDiscrepancy: amountDiscrepancy,
	}
}

// ObserveRun records a completed reconciliation run.
func (m *Metrics) ObserveRun(status, scope string, ordersChecked, lineItemsChecked int, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.ordersChecked.Add(float64(ordersChecked))
	m.lineItemsChecked.Add(float64(lineItemsChecked))
	m.runDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

// ObserveMismatch records one finding.
func (m *Metrics) ObserveMismatch(classification, severity string) {
	if m == nil {
		return
	}
	m.mismatchesTotal.WithLabelValues(classification, severity).Inc()
}

// ObserveAmountDiscrepancy records the absolute cent gap behind an
// amount-bearing mismatch.
func (m *Metrics) ObserveAmountDiscrepancy(classification string, cents int64) {
	if m == nil {
		return
	}
	if cents < 0 {
		cents = -cents
	}
	m.amountDiscrepancy.WithLabelValues(classification).Observe(float64(cents))
}
