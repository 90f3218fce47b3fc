package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics are relay counters, a nil *Metrics is a valid no-op.
type Metrics struct {
	sessions prometheus.Gauge
	conns    prometheus.Gauge
	joins    *prometheus.CounterVec
	relayed  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	stalls   prometheus.Counter
}

const namespace = "relay"

// NewMetrics creates relay metrics and registers them in reg if it's not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sessions_active", Help: "Number of active sessions.",
		}),
		conns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections_active", Help: "Number of accepted connections.",
		}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "joins_total", Help: "Join attempts by result.",
		}, []string{"result"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_relayed_total", Help: "Forwarded messages.",
		}, []string{"type", "quality"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_dropped_total", Help: "Dropped messages by reason.",
		}, []string{"reason"}),
		stalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "handshake_stalls_total", Help: "Connections without a handshake in time.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sessions, m.conns, m.joins, m.relayed, m.dropped, m.stalls)
	}
	return m
}

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) sessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.conns.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.conns.Dec()
	}
}

func (m *Metrics) join(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = err.Error()
	}
	m.joins.WithLabelValues(result).Inc()
}

func (m *Metrics) relay(t string, q Quality, n int) {
	if m != nil {
		m.relayed.WithLabelValues(t, q.String()).Add(float64(n))
	}
}

func (m *Metrics) drop(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) stall() {
	if m != nil {
		m.stalls.Inc()
	}
}
