package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one process. Each instance owns
// its registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics (diagnostics endpoint)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Producer metrics
	SamplesWritten prometheus.Counter
	Temperature    prometheus.Gauge

	// Predictor metrics
	SamplesRelayed prometheus.Counter
	Reconnects     prometheus.Counter

	// Relay metrics, labelled by side ("client" or "server")
	RelayCalls    *prometheus.CounterVec
	RelayDuration *prometheus.HistogramVec

	// Controller metrics
	ValidationRejections prometheus.Counter
	CompensationWrites   prometheus.Counter
	Compensation         *prometheus.GaugeVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON API.
type MetricsSnapshot struct {
	SamplesWritten       uint64  `json:"samples_written"`
	SamplesRelayed       uint64  `json:"samples_relayed"`
	RelayCalls           uint64  `json:"relay_calls"`
	RelayErrors          uint64  `json:"relay_errors"`
	ValidationRejections uint64  `json:"validation_rejections"`
	CompensationWrites   uint64  `json:"compensation_writes"`
	UptimeSeconds        float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector with a fresh registry. namespace
// prefixes every metric name.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of diagnostics HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Diagnostics HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		SamplesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_written_total",
				Help:      "Temperature samples written to the shared segment",
			},
		),
		Temperature: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "temperature_celsius",
				Help:      "Last temperature written or read",
			},
		),

		SamplesRelayed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_relayed_total",
				Help:      "Distortion vectors delivered to the compensation controller",
			},
		),
		Reconnects: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_reconnects_total",
				Help:      "Relay reconnection attempts",
			},
		),

		RelayCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_calls_total",
				Help:      "Relay calls by side and status code",
			},
			[]string{"side", "code"},
		),
		RelayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "relay_duration_seconds",
				Help:      "Relay call duration in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"side"},
		),

		ValidationRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_rejections_total",
				Help:      "Distortion vectors rejected by the sanity bound",
			},
		),
		CompensationWrites: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensation_writes_total",
				Help:      "Compensation values written to the shared segment",
			},
		),
		Compensation: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "compensation_nm",
				Help:      "Last compensation written, per axis",
			},
			[]string{"axis"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing this collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a diagnostics request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSample records one temperature write
func (m *Metrics) RecordSample(celsius float64) {
	m.SamplesWritten.Inc()
	m.Temperature.Set(celsius)

	m.mu.Lock()
	m.snapshot.SamplesWritten++
	m.mu.Unlock()
}

// RecordRelayed records one delivered distortion
func (m *Metrics) RecordRelayed(celsius float64) {
	m.SamplesRelayed.Inc()
	m.Temperature.Set(celsius)

	m.mu.Lock()
	m.snapshot.SamplesRelayed++
	m.mu.Unlock()
}

// IncReconnects increments the reconnect counter
func (m *Metrics) IncReconnects() {
	m.Reconnects.Inc()
}

// RecordRelayCall records a relay call on either side
func (m *Metrics) RecordRelayCall(side, code string, duration time.Duration) {
	m.RelayCalls.WithLabelValues(side, code).Inc()
	m.RelayDuration.WithLabelValues(side).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.RelayCalls++
	if code != "OK" {
		m.snapshot.RelayErrors++
	}
	m.mu.Unlock()
}

// IncValidationRejections records a rejected distortion
func (m *Metrics) IncValidationRejections() {
	m.ValidationRejections.Inc()

	m.mu.Lock()
	m.snapshot.ValidationRejections++
	m.mu.Unlock()
}

// RecordCompensation records one compensation write
func (m *Metrics) RecordCompensation(x, y float64) {
	m.CompensationWrites.Inc()
	m.Compensation.WithLabelValues("x").Set(x)
	m.Compensation.WithLabelValues("y").Set(y)

	m.mu.Lock()
	m.snapshot.CompensationWrites++
	m.mu.Unlock()
}
