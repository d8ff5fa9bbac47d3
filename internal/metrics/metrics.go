package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bazaar"

const (
	OutcomeCreated    = "created"
	OutcomeDuplicate  = "duplicate"
	OutcomeOutOfStock = "out_of_stock"
	OutcomeConflict   = "stock_conflict"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

type OrderMetrics struct {
	OrdersCreated      *prometheus.CounterVec
	CreateLatencyMS    prometheus.Histogram
	StockAdjustments   prometheus.Counter
	StatusTransitions  *prometheus.CounterVec
	PaymentsConfirmed  prometheus.Counter
	SiblingPaymentsSet prometheus.Counter

	registry *prometheus.Registry
}

// NewOrderMetrics registers the engine collectors plus the Go and process
// collectors on a fresh registry.
func NewOrderMetrics() *OrderMetrics {
	m := &OrderMetrics{
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "create_requests_total",
			Help:      "Create-order requests by outcome.",
		}, []string{"outcome"}),
		CreateLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "create_duration_ms",
			Help:      "Create-order latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		StockAdjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "adjustments_total",
			Help:      "Items capped or dropped during reservation.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_transitions_total",
			Help:      "Accepted status transitions.",
		}, []string{"from", "to"}),
		PaymentsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "confirmed_total",
			Help:      "Payments confirmed by shop owners.",
		}),
		SiblingPaymentsSet: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "sibling_propagated_total",
			Help:      "Sibling orders marked paid by propagation.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.OrdersCreated,
		m.CreateLatencyMS,
		m.StockAdjustments,
		m.StatusTransitions,
		m.PaymentsConfirmed,
		m.SiblingPaymentsSet,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *OrderMetrics) ObserveCreate(outcome string, adjustments int, started time.Time) {
	m.OrdersCreated.WithLabelValues(outcome).Inc()
	m.CreateLatencyMS.Observe(float64(time.Since(started).Milliseconds()))
	if adjustments > 0 {
		m.StockAdjustments.Add(float64(adjustments))
	}
}

func (m *OrderMetrics) ObserveTransition(from, to string) {
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

func (m *OrderMetrics) ObservePayment(siblings int) {
	m.PaymentsConfirmed.Inc()
	if siblings > 0 {
		m.SiblingPaymentsSet.Add(float64(siblings))
	}
}

func (m *OrderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
