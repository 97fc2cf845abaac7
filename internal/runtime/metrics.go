package runtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "renderflow"

// Metrics bundles the prometheus collectors for one Service. All methods are
// nil-safe so components can carry an optional *Metrics without guards.
type Metrics struct {
	reconnectAttempts prometheus.Counter
	reconnectFailed   prometheus.Counter
	framesReceived    *prometheus.CounterVec
	progressEvents    prometheus.Counter
	handlerPanics     prometheus.Counter
	submissions       *prometheus.CounterVec
	connectionsActive prometheus.Gauge
	forwardedEvents   *prometheus.CounterVec
}

// NewMetrics builds and registers the collectors on reg. Pass
// prometheus.NewRegistry() in tests to avoid global registration conflicts.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "channel",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnection attempts",
		}),
		reconnectFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "channel",
			Name:      "reconnect_failed_total",
			Help:      "Times the reconnect attempts were exhausted",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "channel",
			Name:      "frames_received_total",
			Help:      "Inbound frames by classified shape",
		}, []string{"kind"}),
		progressEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "channel",
			Name:      "progress_events_total",
			Help:      "Normalized progress events produced by the classifier",
		}),
		handlerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "bus",
			Name:      "handler_panics_total",
			Help:      "Event handler panics recovered during dispatch",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "submissions_total",
			Help:      "Job submissions by outcome",
		}, []string{"outcome"}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "channel",
			Name:      "connections_active",
			Help:      "Whether the push channel is currently open",
		}),
		forwardedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "forward",
			Name:      "events_total",
			Help:      "Events republished to the external sink by topic",
		}, []string{"topic"}),
	}

	reg.MustRegister(
		m.reconnectAttempts,
		m.reconnectFailed,
		m.framesReceived,
		m.progressEvents,
		m.handlerPanics,
		m.submissions,
		m.connectionsActive,
		m.forwardedEvents,
	)
	return m
}

func (m *Metrics) incReconnectAttempt() {
	if m != nil {
		m.reconnectAttempts.Inc()
	}
}

func (m *Metrics) incReconnectFailed() {
	if m != nil {
		m.reconnectFailed.Inc()
	}
}

func (m *Metrics) incFrame(kind FrameKind) {
	if m == nil {
		return
	}
	label := "opaque"
	switch kind {
	case FrameNumber:
		label = "number"
	case FrameRecord:
		label = "record"
	case FrameSequence:
		label = "sequence"
	}
	m.framesReceived.WithLabelValues(label).Inc()
}

func (m *Metrics) incProgress() {
	if m != nil {
		m.progressEvents.Inc()
	}
}

func (m *Metrics) incHandlerPanic() {
	if m != nil {
		m.handlerPanics.Inc()
	}
}

func (m *Metrics) incSubmission(outcome string) {
	if m != nil {
		m.submissions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) setConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connectionsActive.Set(1)
	} else {
		m.connectionsActive.Set(0)
	}
}

func (m *Metrics) incForwarded(topic string) {
	if m != nil {
		m.forwardedEvents.WithLabelValues(topic).Inc()
	}
}
