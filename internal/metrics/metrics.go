// ABOUTME: Prometheus collectors and HTTP middleware for parley-server
// ABOUTME: Records request counts/latency plus exchange and title business metrics

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parley_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parley_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	ExchangesStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_exchanges_started_total",
			Help: "Total streaming exchanges started",
		},
	)

	ExchangesCancelled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_exchanges_cancelled_total",
			Help: "Total exchanges cancelled before completion",
		},
	)

	ExchangeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_exchange_failures_total",
			Help: "Total exchanges ended by transport failure",
		},
	)

	TitlesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_titles_generated_total",
			Help: "Total chat titles synthesized",
		},
	)

	FragmentsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parley_fragments_dropped_total",
			Help: "Total stream fragments dropped instead of applied to a transcript",
		},
	)
)

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records Prometheus metrics for each request. Paths are labeled
// by the matched chi route pattern to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.status),
		).Inc()

		HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(time.Since(start).Seconds())
	})
}
