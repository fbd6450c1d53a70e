package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// Host channel metrics
	HostRequests         *prometheus.CounterVec
	HostRequestDuration  *prometheus.HistogramVec
	HostPending          prometheus.Gauge
	HostConnected        prometheus.Gauge
	HostUnknownResponses prometheus.Counter

	// Recording metrics
	RecordingActive   prometheus.Gauge
	RecordingSessions prometheus.Gauge
	ActionsTotal      *prometheus.CounterVec

	// WebSocket metrics
	WSClients  prometheus.Gauge
	WSMessages *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests    int64
	TotalErrors      int64
	TotalDuration    float64 // sum of all request durations
	RequestCount     int64   // count for averaging
	HostRequests     int64
	HostFailures     int64
	UnknownResponses int64
	ActiveClients    int64
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mkd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mkd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Service metrics
		ServiceCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mkd_service_calls_total",
				Help: "Total number of service tool calls",
			},
			[]string{"service", "tool", "status"},
		),
		ServiceDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mkd_service_duration_seconds",
				Help:    "Service tool call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "tool"},
		),

		// Host channel metrics
		HostRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mkd_host_requests_total",
				Help: "Total number of native host requests by outcome",
			},
			[]string{"command", "outcome"},
		),
		HostRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mkd_host_request_duration_seconds",
				Help:    "Native host request round-trip duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"command"},
		),
		HostPending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mkd_host_pending_requests",
				Help: "Number of host requests awaiting a response",
			},
		),
		HostConnected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mkd_host_connected",
				Help: "Whether the native host channel is up (1) or down (0)",
			},
		),
		HostUnknownResponses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mkd_host_unknown_responses_total",
				Help: "Total number of host responses matching no pending request",
			},
		),

		// Recording metrics
		RecordingActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mkd_recording_active",
				Help: "Whether a recording session is in progress (1) or not (0)",
			},
		),
		RecordingSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mkd_recording_sessions",
				Help: "Number of recording sessions held in memory",
			},
		),
		ActionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mkd_recording_actions_total",
				Help: "Total number of captured actions by outcome",
			},
			[]string{"outcome"},
		),

		// WebSocket metrics
		WSClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mkd_ws_clients",
				Help: "Number of connected WebSocket clients",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mkd_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mkd_uptime_seconds",
				Help: "Connector uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a service tool call
func (m *Metrics) RecordServiceCall(service, tool, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, tool, status).Inc()
	m.ServiceDuration.WithLabelValues(service, tool).Observe(duration.Seconds())
}

// RecordHostRequest records a native host request outcome. The signature
// matches the messenger's observer callback so it can be wired directly.
// Unknown-response frames arrive with an empty command and count against
// a dedicated counter instead of the per-command vectors.
func (m *Metrics) RecordHostRequest(command, outcome string, seconds float64) {
	if outcome == "unknown_response" {
		m.HostUnknownResponses.Inc()
		m.mu.Lock()
		m.snapshot.UnknownResponses++
		m.mu.Unlock()
		return
	}

	m.HostRequests.WithLabelValues(command, outcome).Inc()
	m.HostRequestDuration.WithLabelValues(command).Observe(seconds)

	m.mu.Lock()
	m.snapshot.HostRequests++
	if outcome != "success" {
		m.snapshot.HostFailures++
	}
	m.mu.Unlock()
}

// SetHostPending sets the number of in-flight host requests
func (m *Metrics) SetHostPending(count int) {
	m.HostPending.Set(float64(count))
}

// SetHostConnected reflects the host channel state
func (m *Metrics) SetHostConnected(connected bool) {
	if connected {
		m.HostConnected.Set(1)
	} else {
		m.HostConnected.Set(0)
	}
}

// SetRecordingActive reflects whether a session is in progress
func (m *Metrics) SetRecordingActive(active bool) {
	if active {
		m.RecordingActive.Set(1)
	} else {
		m.RecordingActive.Set(0)
	}
}

// SetRecordingSessions sets the number of stored sessions
func (m *Metrics) SetRecordingSessions(count int) {
	m.RecordingSessions.Set(float64(count))
}

// RecordAction records a captured action outcome ("recorded" or "dropped")
func (m *Metrics) RecordAction(outcome string) {
	m.ActionsTotal.WithLabelValues(outcome).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSClients increments connected WebSocket clients
func (m *Metrics) IncWSClients() {
	m.WSClients.Inc()
	m.mu.Lock()
	m.snapshot.ActiveClients++
	m.mu.Unlock()
}

// DecWSClients decrements connected WebSocket clients
func (m *Metrics) DecWSClients() {
	m.WSClients.Dec()
	m.mu.Lock()
	m.snapshot.ActiveClients--
	m.mu.Unlock()
}

// GetSnapshot returns a copy of the current counters for the JSON API
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// GetUptimeSeconds returns seconds since the collector was created
func (m *Metrics) GetUptimeSeconds() float64 {
	return time.Since(m.startTime).Seconds()
}
