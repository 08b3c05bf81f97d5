// Package metrics holds the portal's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	upstreamFetches *prometheus.CounterVec
	proxyRequests   *prometheus.CounterVec
	derivation      prometheus.Histogram
	tools           *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		upstreamFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdii_upstream_fetch_total",
				Help: "Survey platform reads by form and outcome",
			},
			[]string{"form", "outcome"},
		),
		proxyRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mdii_proxy_requests_total",
				Help: "Requests forwarded to the survey platform by method and upstream status",
			},
			[]string{"method", "status"},
		),
		derivation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mdii_derivation_duration_seconds",
			Help:    "Duration of tool status derivations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}),
		tools: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mdii_tools_total",
				Help: "Registered tools by status, as of the last admin derivation",
			},
			[]string{"status"},
		),
	}
	m.registry.MustRegister(
		m.upstreamFetches,
		m.proxyRequests,
		m.derivation,
		m.tools,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) ObserveFetch(form string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.upstreamFetches.WithLabelValues(form, outcome).Inc()
}

// ObserveProxy counts a proxied request. status is 0 when the upstream could not be reached.
func (m *Metrics) ObserveProxy(method string, status int) {
	m.proxyRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveDerivation(d time.Duration) {
	m.derivation.Observe(d.Seconds())
}

func (m *Metrics) SetToolCounts(active, stopped int) {
	m.tools.WithLabelValues("active").Set(float64(active))
	m.tools.WithLabelValues("stopped").Set(float64(stopped))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
