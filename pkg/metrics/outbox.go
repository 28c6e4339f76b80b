package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts publisher outcomes per sink.
type OutboxMetrics struct {
	published  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	deadLetter *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events delivered to the sink.",
		}, []string{"sink", "event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_failures_total",
			Help:      "Retryable outbox publish failures.",
		}, []string{"sink", "event_type"}),
		deadLetter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "dead_lettered_total",
			Help:      "Outbox events moved to the DLQ.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.published, m.failed, m.deadLetter)
	return m
}

func (m *OutboxMetrics) IncPublished(sink, eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(sink), normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(sink, eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(sink), normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncDeadLetter(reason string) {
	if m == nil || m.deadLetter == nil {
		return
	}
	m.deadLetter.WithLabelValues(normalizeLabel(reason)).Inc()
}
