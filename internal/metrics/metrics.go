package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row outcomes used as the "outcome" label.
const (
	OutcomeTransformed = "transformed"
	OutcomeFailed      = "failed"
)

// File statuses used as the "status" label.
const (
	FileSucceeded = "succeeded"
	FileFailed    = "failed"
	FileSkipped   = "skipped"
)

// Metrics holds all Prometheus metrics.
// It implements record.Observer.
type Metrics struct {
	// Reformatting metrics
	Rows              *prometheus.CounterVec
	RowErrors         *prometheus.CounterVec
	Files             *prometheus.CounterVec
	TransformDuration prometheus.Histogram

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge
	UploadBytes  prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers all metrics on reg. A nil reg gets a fresh
// registry with the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Metrics{
		Rows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reformatter_rows_total",
				Help: "Total source rows processed by outcome",
			},
			[]string{"outcome"},
		),
		RowErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reformatter_row_errors_total",
				Help: "Total failed derivation rules by error kind",
			},
			[]string{"kind"},
		),
		Files: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reformatter_files_total",
				Help: "Total input files processed by status",
			},
			[]string{"status"},
		),
		TransformDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reformatter_transform_duration_seconds",
			Help:    "Duration of dataset transformations",
			Buckets: prometheus.DefBuckets,
		}),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reformatter_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reformatter_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reformatter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		UploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reformatter_upload_bytes",
			Help:    "Size of uploaded ledger exports",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),

		registry: reg,
	}
}

// RowTransformed counts a row that produced a target record.
func (m *Metrics) RowTransformed() {
	m.Rows.WithLabelValues(OutcomeTransformed).Inc()
}

// RowFailed counts one rejected row and each of its failed rules by kind.
func (m *Metrics) RowFailed(kinds []string) {
	m.Rows.WithLabelValues(OutcomeFailed).Inc()
	for _, kind := range kinds {
		m.RowErrors.WithLabelValues(kind).Inc()
	}
}

// FileProcessed counts one input file with its final status.
func (m *Metrics) FileProcessed(status string) {
	m.Files.WithLabelValues(status).Inc()
}

// ObserveTransform records how long one dataset transformation took.
func (m *Metrics) ObserveTransform(d time.Duration) {
	m.TransformDuration.Observe(d.Seconds())
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
