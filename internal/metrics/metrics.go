// Package metrics exposes Prometheus collectors for HTTP traffic and the
// lazily initialized connection resolvers.
package metrics

import (
	"strconv"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fastygo/svckit/pkg/dbconn"
)

const namespace = "svckit"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	poolInits        *prometheus.CounterVec
	poolInitDuration *prometheus.HistogramVec
	connsBorrowed    *prometheus.GaugeVec
	borrowsTotal     *prometheus.CounterVec
}

var _ dbconn.Observer = (*Metrics)(nil)

// New builds the collectors and registers them, together with the process and
// Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		poolInits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dbconn",
			Name:      "pool_inits_total",
			Help:      "Connection pool initialization attempts by outcome.",
		}, []string{"resolver", "outcome"}),
		poolInitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dbconn",
			Name:      "pool_init_duration_seconds",
			Help:      "Time spent opening connection pools.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"resolver"}),
		connsBorrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dbconn",
			Name:      "borrowed_connections",
			Help:      "Connections currently lent out by a resolver.",
		}, []string{"resolver"}),
		borrowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dbconn",
			Name:      "borrows_total",
			Help:      "Connections lent out by a resolver.",
		}, []string{"resolver"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.poolInits,
		m.poolInitDuration,
		m.connsBorrowed,
		m.borrowsTotal,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// InitStarted implements dbconn.Observer.
func (m *Metrics) InitStarted(string) {}

// InitFinished implements dbconn.Observer.
func (m *Metrics) InitFinished(name string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.poolInits.WithLabelValues(name, outcome).Inc()
	m.poolInitDuration.WithLabelValues(name).Observe(took.Seconds())
}

// Borrowed implements dbconn.Observer.
func (m *Metrics) Borrowed(name string) {
	m.borrowsTotal.WithLabelValues(name).Inc()
	m.connsBorrowed.WithLabelValues(name).Inc()
}

// Released implements dbconn.Observer.
func (m *Metrics) Released(name string) {
	m.connsBorrowed.WithLabelValues(name).Dec()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// Instrument records request counts and latency. The path label is the
// matched route pattern, so routers must save it.
func (m *Metrics) Instrument(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == "/metrics" {
			next(ctx)
			return
		}

		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next(ctx)

		path := routePath(ctx)
		method := string(ctx.Method())
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(ctx.Response.StatusCode())).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

func routePath(ctx *fasthttp.RequestCtx) string {
	if route, ok := ctx.UserValue(router.MatchedRoutePathParam).(string); ok && route != "" {
		return route
	}
	return "unmatched"
}
