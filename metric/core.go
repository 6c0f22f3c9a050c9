package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the framework-level metrics (not provider-specific).
type Metrics struct {
	// Session metrics
	SessionStatus    prometheus.Gauge
	CallsTotal       *prometheus.CounterVec
	CallDuration     *prometheus.HistogramVec
	ResponsesYielded *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec

	// Dependency metrics
	DependencyStatus   *prometheus.GaugeVec
	DependencyRestarts *prometheus.CounterVec

	// Persistence metrics
	StoreInserts *prometheus.CounterVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSRTT        prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a Metrics instance with all framework metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "money",
				Subsystem: "session",
				Name:      "status",
				Help:      "Session status (0=stopped, 1=starting, 2=running, 3=stopping)",
			},
		),

		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "money",
				Subsystem: "session",
				Name:      "calls_total",
				Help:      "Total number of router calls dispatched",
			},
			[]string{"provider", "router", "status"},
		),

		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "money",
				Subsystem: "session",
				Name:      "call_duration_seconds",
				Help:      "Router call duration in seconds, stream fully drained",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "router"},
		),

		ResponsesYielded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "money",
				Subsystem: "router",
				Name:      "responses_total",
				Help:      "Total number of responses yielded by routers",
			},
			[]string{"provider", "router"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "money",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),

		DependencyStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "money",
				Subsystem: "dependency",
				Name:      "status",
				Help:      "Dependency status (0=stopped, 1=started)",
			},
			[]string{"dependency"},
		),

		DependencyRestarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "money",
				Subsystem: "dependency",
				Name:      "restarts_total",
				Help:      "Total number of single-dependency restarts",
			},
			[]string{"dependency"},
		),

		StoreInserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "money",
				Subsystem: "store",
				Name:      "inserts_total",
				Help:      "Total number of rows written by Store steps",
			},
			[]string{"table", "status"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "money",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "money",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "money",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordSessionStatus updates the session status gauge.
func (m *Metrics) RecordSessionStatus(status int) {
	m.SessionStatus.Set(float64(status))
}

// RecordCall increments the call counter.
func (m *Metrics) RecordCall(provider, router, status string) {
	m.CallsTotal.WithLabelValues(provider, router, status).Inc()
}

// RecordCallDuration records a fully-drained call's duration.
func (m *Metrics) RecordCallDuration(provider, router string, duration time.Duration) {
	m.CallDuration.WithLabelValues(provider, router).Observe(duration.Seconds())
}

// RecordResponse increments the per-router response counter.
func (m *Metrics) RecordResponse(provider, router string) {
	m.ResponsesYielded.WithLabelValues(provider, router).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, class string) {
	m.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordDependencyStatus updates a dependency's status gauge.
func (m *Metrics) RecordDependencyStatus(dependency string, started bool) {
	value := 0.0
	if started {
		value = 1.0
	}
	m.DependencyStatus.WithLabelValues(dependency).Set(value)
}

// RecordDependencyRestart increments a dependency's restart counter.
func (m *Metrics) RecordDependencyRestart(dependency string) {
	m.DependencyRestarts.WithLabelValues(dependency).Inc()
}

// RecordStoreInsert increments the store insert counter.
func (m *Metrics) RecordStoreInsert(table, status string) {
	m.StoreInserts.WithLabelValues(table, status).Inc()
}

// RecordNATSStatus updates NATS connection status.
func (m *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time.
func (m *Metrics) RecordNATSRTT(rtt time.Duration) {
	m.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments the reconnection counter.
func (m *Metrics) RecordNATSReconnect() {
	m.NATSReconnects.Inc()
}
