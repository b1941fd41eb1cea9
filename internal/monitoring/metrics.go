// Package monitoring exposes Prometheus metrics for refresh cycles, feed
// fetches, and the query API, plus a refresh-health snapshot built from the
// refresh log.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "navaids"

// Metrics holds the Prometheus collectors for the ingestion pipeline and API.
type Metrics struct {
	RefreshRuns     *prometheus.CounterVec // labels: outcome={success,failure,skipped}
	RefreshDuration prometheus.Histogram
	RefreshRunning  prometheus.Gauge
	PointsStored    prometheus.Gauge

	// Feed fetch metrics.
	FetchRequests   *prometheus.CounterVec   // labels: source, outcome={success,error}
	FetchDuration   *prometheus.HistogramVec // labels: source
	PointsExtracted *prometheus.CounterVec   // labels: source

	// Query API metrics.
	APIRequests *prometheus.CounterVec   // labels: route, status
	APIDuration *prometheus.HistogramVec // labels: route
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-and-replace cycle.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		RefreshRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_running",
			Help:      "1 while a refresh cycle is in progress.",
		}),
		PointsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "points_stored",
			Help:      "Points written by the last successful refresh.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Feed document fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Feed document fetch and extract duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"source"}),
		PointsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_extracted_total",
			Help:      "Points extracted from feed documents by source.",
		}, []string{"source"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Query API requests by route and status code.",
		}, []string{"route", "status"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Query API request duration.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshRuns,
		m.RefreshDuration,
		m.RefreshRunning,
		m.PointsStored,
		m.FetchRequests,
		m.FetchDuration,
		m.PointsExtracted,
		m.APIRequests,
		m.APIDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveFetch records one feed document fetch.
func (m *Metrics) ObserveFetch(source string, elapsed time.Duration, points int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.FetchRequests.WithLabelValues(source, outcome).Inc()
	m.FetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if err == nil {
		m.PointsExtracted.WithLabelValues(source).Add(float64(points))
	}
}
