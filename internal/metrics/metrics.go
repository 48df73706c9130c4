package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "supportchat"

// Metrics groups the collectors the chat core reports to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	endpoints        prometheus.Gauge
	delivered        *prometheus.CounterVec
	pruned           prometheus.Counter
	messagesRecorded *prometheus.CounterVec
	rejected         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		endpoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "endpoints",
			Help:      "Endpoints currently registered in the broadcast hub.",
		}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "events_delivered_total",
			Help:      "Events handed to endpoint queues, by event type.",
		}, []string{"type"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "endpoints_pruned_total",
			Help:      "Endpoints removed after a failed delivery.",
		}),
		messagesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_recorded_total",
			Help:      "Messages persisted, by sender role.",
		}, []string{"role"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "operations_rejected_total",
			Help:      "Protocol operations rejected, by operation and error code.",
		}, []string{"operation", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.endpoints, m.delivered, m.pruned, m.messagesRecorded, m.rejected)
	}
	return m
}

func (m *Metrics) EndpointAdded() {
	if m != nil {
		m.endpoints.Inc()
	}
}

func (m *Metrics) EndpointRemoved() {
	if m != nil {
		m.endpoints.Dec()
	}
}

func (m *Metrics) Delivered(eventType string) {
	if m != nil {
		m.delivered.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) Pruned() {
	if m != nil {
		m.pruned.Inc()
	}
}

func (m *Metrics) MessageRecorded(role string) {
	if m != nil {
		m.messagesRecorded.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) Rejected(operation, code string) {
	if m != nil {
		m.rejected.WithLabelValues(operation, code).Inc()
	}
}
