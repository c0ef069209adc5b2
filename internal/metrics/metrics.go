// Package metrics exposes the control plane's Prometheus collectors:
// broker traffic, route recomputation, live-telemetry sessions, and
// HTTP request/host resource gauges.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the control plane registers.
type Metrics struct {
	liveTelemetrySessions prometheus.Gauge

	brokerPublishTotal      *prometheus.CounterVec
	brokerPublishErrors     *prometheus.CounterVec
	brokerMessagesConsumed  prometheus.Counter
	brokerConnectionStatus  prometheus.Gauge

	routeRecomputeTotal    prometheus.Counter
	routeRecomputeEmpty    prometheus.Counter
	routeRecomputeDuration prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	cpuUsagePercent    prometheus.Gauge
	memoryUsageBytes   prometheus.Gauge
	goroutinesCount    prometheus.Gauge
}

// New registers and returns the control plane's collectors against the
// default Prometheus registry.
func New() *Metrics {
	return &Metrics{
		liveTelemetrySessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meshctl_live_telemetry_sessions",
			Help: "Number of currently open live-telemetry websocket sessions",
		}),

		brokerPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meshctl_broker_publish_total",
			Help: "Total messages published to the mesh broker",
		}, []string{"qos"}),
		brokerPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meshctl_broker_publish_errors_total",
			Help: "Total broker publish failures",
		}, []string{"qos"}),
		brokerMessagesConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meshctl_broker_messages_consumed_total",
			Help: "Total messages consumed from the mesh broker",
		}),
		brokerConnectionStatus: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meshctl_broker_connection_status",
			Help: "Broker connection status (1=connected, 0=disconnected)",
		}),

		routeRecomputeTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meshctl_route_recompute_total",
			Help: "Total next-hop table recomputations",
		}),
		routeRecomputeEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meshctl_route_recompute_empty_total",
			Help: "Recomputations that produced an empty next-hop table",
		}),
		routeRecomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "meshctl_route_recompute_duration_seconds",
			Help:    "Duration of next-hop table recomputation",
			Buckets: prometheus.DefBuckets,
		}),

		httpRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meshctl_http_requests_total",
			Help: "Total HTTP requests handled",
		}, []string{"route", "status"}),
		httpRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meshctl_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		cpuUsagePercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meshctl_process_cpu_usage_percent",
			Help: "Host-wide CPU usage percentage (all cores combined)",
		}),
		memoryUsageBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meshctl_process_memory_usage_bytes",
			Help: "Go heap bytes allocated by the process",
		}),
		goroutinesCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meshctl_goroutines_count",
			Help: "Number of live goroutines",
		}),
	}
}

func (m *Metrics) LiveTelemetrySessionOpened() { m.liveTelemetrySessions.Inc() }
func (m *Metrics) LiveTelemetrySessionClosed() { m.liveTelemetrySessions.Dec() }

func (m *Metrics) BrokerPublished(qos string)     { m.brokerPublishTotal.WithLabelValues(qos).Inc() }
func (m *Metrics) BrokerPublishFailed(qos string) { m.brokerPublishErrors.WithLabelValues(qos).Inc() }
func (m *Metrics) BrokerConsumed()                { m.brokerMessagesConsumed.Inc() }
func (m *Metrics) SetBrokerConnected(connected bool) {
	if connected {
		m.brokerConnectionStatus.Set(1)
	} else {
		m.brokerConnectionStatus.Set(0)
	}
}

func (m *Metrics) RouteRecomputed(empty bool, d time.Duration) {
	m.routeRecomputeTotal.Inc()
	if empty {
		m.routeRecomputeEmpty.Inc()
	}
	m.routeRecomputeDuration.Observe(d.Seconds())
}

func (m *Metrics) HTTPRequest(route, status string, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(route, status).Inc()
	m.httpRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) SetCPUUsagePercent(p float64)   { m.cpuUsagePercent.Set(p) }
func (m *Metrics) SetMemoryUsageBytes(b uint64)   { m.memoryUsageBytes.Set(float64(b)) }
func (m *Metrics) SetGoroutinesCount(n int)       { m.goroutinesCount.Set(float64(n)) }
