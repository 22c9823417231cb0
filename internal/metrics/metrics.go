// Package metrics exposes the server's own Prometheus instrumentation:
// HTTP request counters/latency plus ingestion outcome counters.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opslens_http_requests_total",
			Help: "HTTP requests served, by method, path, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opslens_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	runsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opslens_runs_ingested_total",
			Help: "Diagnostic bundles successfully ingested and committed.",
		},
	)

	ingestFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opslens_ingest_failures_total",
			Help: "Rejected or failed ingestions, by failure kind.",
		},
		[]string{"kind"},
	)

	lastHealthScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opslens_last_health_score",
			Help: "Health score of the most recent run, per host.",
		},
		[]string{"host"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
	prometheus.MustRegister(runsIngested)
	prometheus.MustRegister(ingestFailures)
	prometheus.MustRegister(lastHealthScore)
}

// RunIngested records one committed run and its score.
func RunIngested(host string, healthScore int) {
	runsIngested.Inc()
	lastHealthScore.WithLabelValues(host).Set(float64(healthScore))
}

// IngestFailed records one rejected or failed ingestion.
// kind is one of: invalid_archive, unsafe_path, too_large, store, internal.
func IngestFailed(kind string) {
	ingestFailures.WithLabelValues(kind).Inc()
}

// Middleware instruments an HTTP handler with request count and latency.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		requestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
