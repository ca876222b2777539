// Package metrics provides Prometheus metrics collection for the kernel.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "appkernel"

// Collector holds all Prometheus metrics for the kernel.
type Collector struct {
	// Boot metrics
	BootsTotal   *prometheus.CounterVec
	BootDuration prometheus.Histogram
	BootLast     prometheus.Gauge

	// Loader metrics
	ImportsTotal    *prometheus.CounterVec
	FilesLoaded     *prometheus.CounterVec
	OptionalSkipped prometheus.Counter

	// Bundle metrics
	BundlesActive *prometheus.GaugeVec
	BundleBootErr *prometheus.CounterVec

	// Watcher metrics
	Reloads      prometheus.Counter
	ReloadErrors prometheus.Counter

	// Diagnostics server metrics
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		BootsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boots_total",
				Help:      "Total number of kernel boots by result",
			},
			[]string{"env", "mode", "result"},
		),
		BootDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "boot_duration_seconds",
				Help:      "Kernel boot duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		BootLast: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "boot_last_timestamp",
				Help:      "Unix timestamp of the last successful boot",
			},
		),
		ImportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "Total number of plan imports executed",
			},
			[]string{"target", "kind"},
		),
		FilesLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_loaded_total",
				Help:      "Total number of configuration files merged",
			},
			[]string{"target"},
		),
		OptionalSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optional_skipped_total",
				Help:      "Total number of optional imports skipped because the file was absent",
			},
		),
		BundlesActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bundles_active",
				Help:      "Number of booted bundles by profile",
			},
			[]string{"profile"},
		),
		BundleBootErr: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundle_boot_errors_total",
				Help:      "Total number of bundle boot failures",
			},
			[]string{"bundle"},
		),
		Reloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total number of successful kernel reloads",
			},
		),
		ReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reload_errors_total",
				Help:      "Total number of failed kernel reloads",
			},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Diagnostics request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of diagnostics requests being served",
			},
		),
	}
}
