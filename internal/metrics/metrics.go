// Package metrics holds the Prometheus collectors for the advisor host.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "advisor"

// Collector owns a private registry so tests can build as many as they like.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	proxyRequestsTotal *prometheus.CounterVec
	proxyRateLimited   *prometheus.CounterVec

	interruptsTotal  *prometheus.CounterVec
	resolutionsTotal *prometheus.CounterVec
	abandonedTotal   *prometheus.CounterVec
	runErrorsTotal   *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// New registers all collectors, plus the Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"method", "route"}),
		proxyRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Requests forwarded to LangGraph deployments",
		}, []string{"agent", "status"}),
		proxyRateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_rate_limited_total",
			Help:      "Proxy requests rejected by the per-agent rate limit",
		}, []string{"agent"}),
		interruptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interrupts_total",
			Help:      "Interrupts raised by agent runs",
		}, []string{"agent", "kind"}),
		resolutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Interrupts resolved by the user",
		}, []string{"agent", "kind"}),
		abandonedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interrupts_abandoned_total",
			Help:      "Interrupts left unresolved when their session closed",
		}, []string{"agent", "kind"}),
		runErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Agent runs that ended with an error",
		}, []string{"agent"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Open agent sessions",
		}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordProxyRequest(agent string, status int) {
	if c == nil {
		return
	}
	c.proxyRequestsTotal.WithLabelValues(agent, strconv.Itoa(status)).Inc()
}

func (c *Collector) RecordRateLimited(agent string) {
	if c == nil {
		return
	}
	c.proxyRateLimited.WithLabelValues(agent).Inc()
}

func (c *Collector) RecordInterrupt(agent, kind string) {
	if c == nil {
		return
	}
	c.interruptsTotal.WithLabelValues(agent, kind).Inc()
}

func (c *Collector) RecordResolution(agent, kind string) {
	if c == nil {
		return
	}
	c.resolutionsTotal.WithLabelValues(agent, kind).Inc()
}

func (c *Collector) RecordAbandoned(agent, kind string) {
	if c == nil {
		return
	}
	c.abandonedTotal.WithLabelValues(agent, kind).Inc()
}

func (c *Collector) RecordRunError(agent string) {
	if c == nil {
		return
	}
	c.runErrorsTotal.WithLabelValues(agent).Inc()
}

func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.activeSessions.Inc()
}

func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}
