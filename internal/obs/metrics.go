package obs

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"StandMatch/internal/core/domain"
	"StandMatch/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Domain counters, fed off the event bus.
var (
	profilesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "profiles_created_total",
		Help: "Profiles created from imports or self-registration.",
	})
	profilesMergedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "profiles_merged_total",
		Help: "Duplicate profiles folded into a winner.",
	})
	claimsVerifiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "claims_verified_total",
		Help: "Claim challenges verified successfully.",
	})
	leadsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leads_submitted_total",
		Help: "Leads accepted for routing.",
	})
	leadsRoutedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leads_routed_total",
		Help: "Routing passes that produced a matched set.",
	})
	leadActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_actions_total",
			Help: "Profile-initiated lead actions.",
		},
		[]string{"action"},
	)
)

// Init registers all metrics on the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		profilesCreatedTotal, profilesMergedTotal, claimsVerifiedTotal,
		leadsSubmittedTotal, leadsRoutedTotal, leadActionsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument wraps an HTTP handler with RPS, latency and in-flight
// measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// ObserveEvents subscribes the domain counters to the bus. Returns the
// unsubscribe function.
func ObserveEvents(bus ports.EventBus) func() {
	return bus.Subscribe(func(ctx context.Context, evt domain.Event) error {
		switch evt.Type {
		case domain.EventProfileCreated:
			profilesCreatedTotal.Inc()
		case domain.EventProfileMerged:
			profilesMergedTotal.Inc()
		case domain.EventProfileClaimed:
			claimsVerifiedTotal.Inc()
		case domain.EventLeadSubmitted:
			leadsSubmittedTotal.Inc()
		case domain.EventLeadRouted:
			leadsRoutedTotal.Inc()
		case domain.EventLeadAction:
			if action, ok := evt.Payload["action"].(string); ok {
				leadActionsTotal.WithLabelValues(action).Inc()
			}
		}
		return nil
	})
}

// statusWriter captures the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
