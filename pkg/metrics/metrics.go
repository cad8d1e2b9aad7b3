// Package metrics defines the Prometheus metric collectors used by the
// explorer and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the explorer.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	DatasetRows          prometheus.Gauge
	FigureRecomputes     prometheus.Counter
	FilteredRows         prometheus.Histogram
	RecomputeLatency     *prometheus.HistogramVec
	SelectionsTotal      *prometheus.CounterVec
	SelectedPoints       prometheus.Histogram
	StaleSelections      prometheus.Counter
	FigureCacheHits      prometheus.Counter
	FigureCacheMisses    prometheus.Counter
	ActiveSessions       prometheus.Gauge
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DatasetRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "explorer_dataset_rows",
				Help: "Number of rows loaded from the posts table.",
			},
		),
		FigureRecomputes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "explorer_figure_recomputes_total",
				Help: "Total filter and projection recomputes triggered by control changes.",
			},
		),
		FilteredRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "explorer_filtered_rows",
				Help:    "Number of rows matching the filter per recompute.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		RecomputeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explorer_recompute_seconds",
				Help:    "Latency of each recompute step in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"step"},
		),
		SelectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_selections_total",
				Help: "Total plot selections by kind (points, box, lasso, clear).",
			},
			[]string{"kind"},
		),
		SelectedPoints: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "explorer_selected_points",
				Help:    "Number of points per resolved selection.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 7),
			},
		),
		StaleSelections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "explorer_stale_selections_total",
				Help: "Selections rejected because they referred to an outdated figure.",
			},
		),
		FigureCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "explorer_figure_cache_hits_total",
				Help: "Total rendered-figure cache hits.",
			},
		),
		FigureCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "explorer_figure_cache_misses_total",
				Help: "Total rendered-figure cache misses.",
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "explorer_active_sessions",
				Help: "Sessions held by the in-memory session store.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DatasetRows,
		m.FigureRecomputes,
		m.FilteredRows,
		m.RecomputeLatency,
		m.SelectionsTotal,
		m.SelectedPoints,
		m.StaleSelections,
		m.FigureCacheHits,
		m.FigureCacheMisses,
		m.ActiveSessions,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default
// registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
