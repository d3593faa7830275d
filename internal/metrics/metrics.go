// Package metrics provides Prometheus instrumentation for the dashboard engine.
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
	// BackendRequestsTotal counts outgoing backend calls by method, path and outcome.
	BackendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_backend_requests_total",
		Help: "Total requests sent to the trading backend",
	}, []string{"method", "path", "outcome"})

	// BackendRequestDuration tracks backend round-trip time.
	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_backend_request_duration_seconds",
		Help:    "Backend request duration in seconds",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})

	// PollTicks counts poller ticks by view.
	PollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_poll_ticks_total",
		Help: "Poll ticks started per view",
	}, []string{"view"})

	// PollDiscarded counts responses dropped because the poller had stopped or a newer response was applied.
	PollDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_poll_discarded_total",
		Help: "Poll responses discarded before being applied",
	}, []string{"view"})

	// ToastsEmitted counts notifications by severity.
	ToastsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_toasts_emitted_total",
		Help: "Notifications emitted",
	}, []string{"severity"})

	// ForceLogouts counts processed force-logout events by source.
	ForceLogouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_force_logouts_total",
		Help: "Force logout events handled",
	}, []string{"source"})

	// SessionState is 1 for the current guard state and 0 for the others.
	SessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dashboard_session_state",
		Help: "Current session guard state",
	}, []string{"state"})

	// HTTPRequestsTotal counts local API requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_http_requests_total",
		Help: "Total local HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks local API request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_http_request_duration_seconds",
		Help:    "Local HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// SetSessionState flips the session gauge to the given state.
func SetSessionState(current string, all ...string) {
	for _, s := range all {
		SessionState.WithLabelValues(s).Set(0)
	}
	SessionState.WithLabelValues(current).Set(1)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Route pattern keeps label cardinality bounded for /api/watchlist/{id}.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
