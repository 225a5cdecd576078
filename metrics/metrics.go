// Package metrics exposes prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	agreementsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agreements_created_total",
			Help: "Total number of agreements created and published",
		},
	)

	signaturesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signatures_recorded_total",
			Help: "Total number of signatures appended to the ledger",
		},
	)

	signatureConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signature_conflicts_total",
			Help: "Total number of duplicate-signature attempts rejected",
		},
	)
)

// WorkflowRecorder satisfies the signing service's Recorder.
type WorkflowRecorder struct{}

func (WorkflowRecorder) AgreementCreated()  { agreementsCreated.Inc() }
func (WorkflowRecorder) SignatureRecorded() { signaturesRecorded.Inc() }
func (WorkflowRecorder) SignatureConflict() { signatureConflicts.Inc() }

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency per route pattern. The chi
// pattern (e.g. /api/sign/{agreementID}) keeps the label cardinality fixed;
// raw paths with embedded ids would mint a label pair per id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
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
