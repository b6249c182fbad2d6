package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the HTTP surface and the planning engine.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	planningRuns        *prometheus.CounterVec
	planningSuggestions prometheus.Counter
	planningSkipped     *prometheus.CounterVec
	ordersGenerated     prometheus.Counter
}

// NewMetrics initialises the registry and base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mype_http_requests_total",
		Help: "HTTP requests partitioned by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mype_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mype_planning_runs_total",
		Help: "Planning runs partitioned by outcome.",
	}, []string{"status"})
	suggestions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mype_planning_suggestions_total",
		Help: "Purchase suggestions persisted by planning runs.",
	})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mype_planning_skipped_lines_total",
		Help: "Demand contributions skipped because of master data gaps.",
	}, []string{"reason"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mype_planning_purchase_orders_total",
		Help: "Purchase orders generated from approved suggestions.",
	})
	registry.MustRegister(requests, duration, runs, suggestions, skipped, orders)
	return &Metrics{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:       requests,
		requestDuration:     duration,
		planningRuns:        runs,
		planningSuggestions: suggestions,
		planningSkipped:     skipped,
		ordersGenerated:     orders,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// PlanningRun counts a finished planning run.
func (m *Metrics) PlanningRun(err error, suggestions int) {
	if m == nil {
		return
	}
	if err != nil {
		m.planningRuns.WithLabelValues("failure").Inc()
		return
	}
	m.planningRuns.WithLabelValues("success").Inc()
	m.planningSuggestions.Add(float64(suggestions))
}

// SkippedLine counts a demand contribution dropped for the given reason.
func (m *Metrics) SkippedLine(reason string) {
	if m == nil {
		return
	}
	m.planningSkipped.WithLabelValues(reason).Inc()
}

// OrdersGenerated counts purchase orders created by approval.
func (m *Metrics) OrdersGenerated(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.ordersGenerated.Add(float64(count))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
