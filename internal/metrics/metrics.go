// Package metrics exposes Prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relun"

// Metrics holds every collector on its own registry
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	swipesTotal     *prometheus.CounterVec
	matchesTotal    prometheus.Counter
	messagesTotal   *prometheus.CounterVec
	wsSessions      prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.swipesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "swipes_total",
		Help:      "Recorded swipes by decision.",
	}, []string{"decision"})

	m.matchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "matches_total",
		Help:      "Matches created.",
	})

	m.messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Chat messages persisted by the channel they arrived on.",
	}, []string{"channel"})

	m.wsSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_sessions",
		Help:      "Open websocket sessions.",
	})

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.swipesTotal,
		m.matchesTotal,
		m.messagesTotal,
		m.wsSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one finished HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SwipeRecorded counts a swipe
func (m *Metrics) SwipeRecorded(decision string) {
	if m == nil {
		return
	}
	m.swipesTotal.WithLabelValues(decision).Inc()
}

// MatchCreated counts a new match
func (m *Metrics) MatchCreated() {
	if m == nil {
		return
	}
	m.matchesTotal.Inc()
}

// MessageSent counts a persisted message by the channel it arrived on
func (m *Metrics) MessageSent(channel string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(channel).Inc()
}

// SessionOpened increments the open websocket gauge
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.wsSessions.Inc()
}

// SessionClosed decrements the open websocket gauge
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.wsSessions.Dec()
}
