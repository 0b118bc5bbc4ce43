// Package metrics provides Prometheus metrics for arxmltool
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for arxmltool
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Model operation metrics
	ModelOperationsTotal   *prometheus.CounterVec
	ModelOperationDuration *prometheus.HistogramVec

	// Content of the open models
	ModelsOpen         prometheus.Gauge
	FilesTotal         prometheus.Gauge
	ElementsTotal      prometheus.Gauge
	IdentifiablesTotal prometheus.Gauge

	// Diagnostics
	ParseWarningsTotal       *prometheus.CounterVec
	DanglingReferencesTotal  prometheus.Counter
	CompatibilityErrorsTotal *prometheus.CounterVec

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates all metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	// gRPC request metrics
	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arxmltool_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arxmltool_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "arxmltool_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Model operation metrics
	m.ModelOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arxmltool_model_operations_total",
			Help: "Total number of model operations",
		},
		[]string{"operation", "status"},
	)

	m.ModelOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arxmltool_model_operation_duration_seconds",
			Help:    "Duration of model operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.ModelsOpen = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "arxmltool_models_open",
			Help: "Number of model sessions currently open",
		},
	)

	m.FilesTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "arxmltool_files_total",
			Help: "Files in the most recently updated model",
		},
	)

	m.ElementsTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "arxmltool_elements_total",
			Help: "Elements in the most recently updated model",
		},
	)

	m.IdentifiablesTotal = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "arxmltool_identifiables_total",
			Help: "Identifiable paths in the most recently updated model",
		},
	)

	m.ParseWarningsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arxmltool_parse_warnings_total",
			Help: "Total number of deviations reported while parsing",
		},
		[]string{"kind"},
	)

	m.DanglingReferencesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "arxmltool_dangling_references_total",
			Help: "Total number of unresolved references found by reference checks",
		},
	)

	m.CompatibilityErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arxmltool_compatibility_errors_total",
			Help: "Total number of version incompatibilities found",
		},
		[]string{"kind"},
	)

	// Server metrics
	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "arxmltool_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// RunUptime updates the uptime gauge until done is closed
func (m *Metrics) RunUptime(done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordModelOperation records one of load, serialize, check_references,
// check_compat or write
func (m *Metrics) RecordModelOperation(operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ModelOperationsTotal.WithLabelValues(operation, status).Inc()
	m.ModelOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateModelStats publishes the size of a model
func (m *Metrics) UpdateModelStats(files, elements, identifiables int) {
	m.FilesTotal.Set(float64(files))
	m.ElementsTotal.Set(float64(elements))
	m.IdentifiablesTotal.Set(float64(identifiables))
}

// RecordParseWarning counts one parse deviation of the given kind
func (m *Metrics) RecordParseWarning(kind string) {
	m.ParseWarningsTotal.WithLabelValues(kind).Inc()
}
