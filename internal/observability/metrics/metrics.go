package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallMetrics exposes counters/histograms for voice call sessions.
type CallMetrics struct {
	callsTotal     *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	bookingsTotal  *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

func NewCallMetrics(reg prometheus.Registerer) *CallMetrics {
	m := &CallMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "calls",
			Name:      "finished_total",
			Help:      "Total finished calls by status and outcome",
		}, []string{"status", "outcome"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voiceagent",
			Subsystem: "calls",
			Name:      "duration_seconds",
			Help:      "Call duration from stream start to teardown",
			Buckets:   []float64{5, 15, 30, 60, 120, 180, 300, 600},
		}, []string{"status"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Total booking attempts by result",
		}, []string{"result"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voiceagent",
			Subsystem: "calls",
			Name:      "active_sessions",
			Help:      "Currently bridged call sessions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.callDuration, m.bookingsTotal, m.activeSessions)
	return m
}

func (m *CallMetrics) ObserveCallFinished(status, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(status, outcome).Inc()
	m.callDuration.WithLabelValues(status).Observe(seconds)
}

func (m *CallMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *CallMetrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *CallMetrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}
