// Package metrics exposes Prometheus metrics of the catalog.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	http_ "github.com/mkrupp/itemcatalog/internal/infra/transport/http"
)

const namespace = "catalog"

// Sign-in methods and outcomes used as label values.
const (
	MethodLocal      = "local"
	MethodThirdParty = "third_party"

	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
)

// unmatchedRoute labels requests no route matched, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

// Metrics holds the collectors of one process. Each instance has its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	requestsInFlight prometheus.Gauge
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	signIns          *prometheus.CounterVec
	signUps          *prometheus.CounterVec
}

// New creates and registers the catalog collectors plus the Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		//nolint:exhaustruct
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served.",
		}),
		//nolint:exhaustruct
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status.",
		}, []string{"method", "route", "status"}),
		//nolint:exhaustruct
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		//nolint:exhaustruct
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_ins_total",
			Help:      "Sign-in attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		//nolint:exhaustruct
		signUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_ups_total",
			Help:      "Account registrations by method.",
		}, []string{"method"}),
	}

	registry.MustRegister(
		m.requestsInFlight,
		m.requestsTotal,
		m.requestDuration,
		m.signIns,
		m.signUps,
		collectors.NewGoCollector(),
		//nolint:exhaustruct
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	//nolint:exhaustruct
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request metrics labelled with the matched route template.
func (m *Metrics) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			rec := http_.NewResponseRecorder(w)

			next.ServeHTTP(rec, r)

			route := routeTemplate(r)
			m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.StatusCode)).Inc()
			m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return unmatchedRoute
	}

	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return unmatchedRoute
	}

	return tmpl
}

// SignIn counts a sign-in attempt.
func (m *Metrics) SignIn(method, outcome string) {
	m.signIns.WithLabelValues(method, outcome).Inc()
}

// SignUp counts a new account.
func (m *Metrics) SignUp(method string) {
	m.signUps.WithLabelValues(method).Inc()
}
