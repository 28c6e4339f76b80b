package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CheckoutResultSuccess    = "success"
	CheckoutResultOutOfStock = "out_of_stock"
	CheckoutResultError      = "error"
)

// CheckoutMetrics tracks order placement.
type CheckoutMetrics struct {
	placed     *prometheus.CounterVec
	outOfStock prometheus.Counter
	duration   *prometheus.HistogramVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		placed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "orders_placed_total",
			Help:      "Orders committed by checkout, by pay method.",
		}, []string{"pay_method"}),
		outOfStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "out_of_stock_total",
			Help:      "Checkouts aborted because an item lacked stock.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "duration_seconds",
			Help:      "Checkout latency by result.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"result"}),
	}
	reg.MustRegister(m.placed, m.outOfStock, m.duration)
	return m
}

func (m *CheckoutMetrics) IncPlaced(payMethod string) {
	if m == nil || m.placed == nil {
		return
	}
	m.placed.WithLabelValues(normalizeLabel(payMethod)).Inc()
}

func (m *CheckoutMetrics) IncOutOfStock() {
	if m == nil || m.outOfStock == nil {
		return
	}
	m.outOfStock.Inc()
}

func (m *CheckoutMetrics) ObserveDuration(result string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(result)).Observe(d.Seconds())
}
