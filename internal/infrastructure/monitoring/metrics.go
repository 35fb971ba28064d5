package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Reconciliation metrics
	MergesTotal     prometheus.Counter
	MergeDuration   prometheus.Histogram
	RefreshesTotal  prometheus.Counter
	RefreshFailures prometheus.Counter
	RefreshDuration prometheus.Histogram
	LibraryStatus   *prometheus.GaugeVec
	Observers       prometheus.Gauge

	// Action log metrics
	ActionsRecorded *prometheus.CounterVec
	ActionsAdvanced *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appdock_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appdock_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),

		MergesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appdock_library_merges_total",
				Help: "Total number of library view merges",
			},
		),
		MergeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "appdock_library_merge_duration_seconds",
				Help:    "Library merge duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
		RefreshesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appdock_library_refreshes_total",
				Help: "Total number of cold refreshes",
			},
		),
		RefreshFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appdock_library_refresh_failures_total",
				Help: "Total number of failed cold refreshes",
			},
		),
		RefreshDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "appdock_library_refresh_duration_seconds",
				Help:    "Cold refresh duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		LibraryStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "appdock_library_items",
				Help: "Number of library items per derived status",
			},
			[]string{"status"},
		),
		Observers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appdock_library_observers",
				Help: "Number of active library view observers",
			},
		),

		ActionsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appdock_actions_recorded_total",
				Help: "Total number of lifecycle actions recorded",
			},
			[]string{"type"},
		),
		ActionsAdvanced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appdock_actions_advanced_total",
				Help: "Total number of lifecycle status transitions",
			},
			[]string{"status"},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appdock_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appdock_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

// RecordMerge records one reconciliation merge
func (m *Metrics) RecordMerge(duration time.Duration) {
	m.MergesTotal.Inc()
	m.MergeDuration.Observe(duration.Seconds())
}

// RecordRefresh records one cold refresh attempt
func (m *Metrics) RecordRefresh(duration time.Duration, err error) {
	m.RefreshesTotal.Inc()
	m.RefreshDuration.Observe(duration.Seconds())
	if err != nil {
		m.RefreshFailures.Inc()
	}
}

// SetLibraryStatus updates the per-status item gauge
func (m *Metrics) SetLibraryStatus(counts map[string]int) {
	for status, n := range counts {
		m.LibraryStatus.WithLabelValues(status).Set(float64(n))
	}
}

// RecordAction records a newly recorded lifecycle action
func (m *Metrics) RecordAction(actionType string) {
	m.ActionsRecorded.WithLabelValues(actionType).Inc()
}

// RecordAdvance records a lifecycle status transition
func (m *Metrics) RecordAdvance(status string) {
	m.ActionsAdvanced.WithLabelValues(status).Inc()
}
