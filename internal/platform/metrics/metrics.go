package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors tracked by the API.
type Metrics struct {
	registry *prometheus.Registry

	QuotesTotal        *prometheus.CounterVec
	UnserviceableTotal *prometheus.CounterVec
	DraftSyncFailures  prometheus.Counter
	WebhookRejections  *prometheus.CounterVec
	PaymentsInitiated  *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	m := &Metrics{
		registry: registry,
		QuotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cargolink",
			Name:      "quotes_total",
			Help:      "Shipment quotes computed, by courier service.",
		}, []string{"courier"}),
		UnserviceableTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cargolink",
			Name:      "unserviceable_routes_total",
			Help:      "Quote requests with no matching rate rule, by route.",
		}, []string{"origin", "destination"}),
		DraftSyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cargolink",
			Name:      "draft_sync_failures_total",
			Help:      "Per-draft failures during local/remote sync.",
		}),
		WebhookRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cargolink",
			Name:      "webhook_rejections_total",
			Help:      "Payment webhook deliveries rejected, by reason.",
		}, []string{"reason"}),
		PaymentsInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cargolink",
			Name:      "payments_initiated_total",
			Help:      "Checkout payments started, by mode.",
		}, []string{"mode"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cargolink",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	registry.MustRegister(
		m.QuotesTotal,
		m.UnserviceableTotal,
		m.DraftSyncFailures,
		m.WebhookRejections,
		m.PaymentsInitiated,
		m.RequestDuration,
	)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestDurationMiddleware observes request latency labelled by the matched
// chi route pattern rather than the raw path, keeping cardinality bounded.
func (m *Metrics) RequestDurationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.RequestDuration.
				WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}
