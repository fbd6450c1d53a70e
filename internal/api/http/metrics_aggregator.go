package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flying-pisces/mkd-automation-sub002/internal/host"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/monitoring"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/resilience"
)

// hostQueryTimeout bounds one GET_STATUS round-trip for the aggregate
// view. Far below the channel request timeout; a slow host should not
// stall a metrics scrape.
const hostQueryTimeout = 3 * time.Second

// HostSource answers status queries for the aggregate view
type HostSource interface {
	Call(ctx context.Context, command string, params map[string]interface{}) (map[string]interface{}, error)
	Status() host.Status
}

// MetricsAggregator merges connector metrics with host-reported stats
// behind a circuit breaker
type MetricsAggregator struct {
	metrics *monitoring.Metrics
	source  HostSource
	breaker *resilience.Breaker
}

// NewMetricsAggregator creates a metrics aggregator with circuit breaker
func NewMetricsAggregator(metrics *monitoring.Metrics, source HostSource) *MetricsAggregator {
	breaker := resilience.New("metrics-host", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// Metrics are non-critical; stop querying a struggling host early
			return counts.ConsecutiveFailures >= 3
		},
	})

	return &MetricsAggregator{
		metrics: metrics,
		source:  source,
		breaker: breaker,
	}
}

// Aggregate is the combined metrics view
type Aggregate struct {
	Timestamp time.Time              `json:"timestamp"`
	Connector map[string]interface{} `json:"connector"`
	Host      map[string]interface{} `json:"host,omitempty"`
	Summary   Summary                `json:"summary"`
}

// Summary provides high-level metrics
type Summary struct {
	TotalRequests    int64   `json:"total_requests"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	ErrorRate        float64 `json:"error_rate"`
	HostFailureRate  float64 `json:"host_failure_rate"`
	ActiveClients    int64   `json:"active_clients"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// GetAggregatedMetrics returns the combined connector and host view
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	aggregate := Aggregate{
		Timestamp: time.Now(),
		Connector: ma.connectorMetrics(),
		Summary:   ma.calculateSummary(),
	}

	if hostMetrics := ma.hostMetrics(c.Request.Context()); hostMetrics != nil {
		aggregate.Host = hostMetrics
	}

	c.JSON(http.StatusOK, aggregate)
}

// connectorMetrics collects daemon-side counters
func (ma *MetricsAggregator) connectorMetrics() map[string]interface{} {
	snapshot := ma.metrics.GetSnapshot()

	return map[string]interface{}{
		"status":            "operational",
		"total_requests":    snapshot.TotalRequests,
		"total_errors":      snapshot.TotalErrors,
		"host_requests":     snapshot.HostRequests,
		"host_failures":     snapshot.HostFailures,
		"unknown_responses": snapshot.UnknownResponses,
		"active_clients":    snapshot.ActiveClients,
		"uptime_seconds":    ma.metrics.GetUptimeSeconds(),
	}
}

// hostMetrics fetches stats from the native host with circuit breaker
// protection. A disconnected channel is skipped outright so scrapes do
// not burn breaker failures while the host is known to be down.
func (ma *MetricsAggregator) hostMetrics(parent context.Context) map[string]interface{} {
	status := ma.source.Status()
	if !status.Connected {
		return nil
	}

	result, err := ma.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(parent, hostQueryTimeout)
		defer cancel()
		return ma.source.Call(ctx, host.StatusCommand, nil)
	})
	if err != nil {
		// Host unavailable or breaker open; the aggregate stays useful
		// without the host section
		return nil
	}

	data, _ := result.(map[string]interface{})
	merged := map[string]interface{}{
		"status":  "operational",
		"pending": status.Pending,
	}
	for key, value := range data {
		merged[key] = value
	}
	return merged
}

// calculateSummary computes high-level summary metrics
func (ma *MetricsAggregator) calculateSummary() Summary {
	snapshot := ma.metrics.GetSnapshot()

	var avgLatency float64
	if snapshot.RequestCount > 0 {
		avgLatency = (snapshot.TotalDuration / float64(snapshot.RequestCount)) * 1000
	}

	var errorRate float64
	if snapshot.TotalRequests > 0 {
		errorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}

	var hostFailureRate float64
	if snapshot.HostRequests > 0 {
		hostFailureRate = float64(snapshot.HostFailures) / float64(snapshot.HostRequests)
	}

	return Summary{
		TotalRequests:    snapshot.TotalRequests,
		AverageLatencyMs: avgLatency,
		ErrorRate:        errorRate,
		HostFailureRate:  hostFailureRate,
		ActiveClients:    snapshot.ActiveClients,
		UptimeSeconds:    ma.metrics.GetUptimeSeconds(),
	}
}

// BreakerState exposes the breaker state for the health surface
func (ma *MetricsAggregator) BreakerState() string {
	return ma.breaker.State().String()
}
