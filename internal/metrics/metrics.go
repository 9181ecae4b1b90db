// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	httpInFlight    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	events          *prometheus.CounterVec
	lastSeenDropped prometheus.Counter
	sessionsPurged  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Consumed broker messages by topic and outcome.",
		}, []string{"topic", "outcome"}),
		lastSeenDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "last_seen_dropped_total",
			Help: "Last-seen updates dropped because the queue was full.",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessions_purged_total",
			Help: "Expired refresh tokens deleted by the purge job.",
		}),
	}
	reg.MustRegister(m.httpInFlight, m.httpRequests, m.httpDuration, m.events, m.lastSeenDropped, m.sessionsPurged)
	return m
}

// Handler exposes the collectors of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RequestStarted increments the in-flight gauge.
func (m *Metrics) RequestStarted() {
	if m == nil {
		return
	}
	m.httpInFlight.Inc()
}

// RequestDone records a finished request.
func (m *Metrics) RequestDone(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpInFlight.Dec()
	m.httpRequests.WithLabelValues(method, route, code).Inc()
	m.httpDuration.WithLabelValues(method, route, code).Observe(dur.Seconds())
}

// Event records the outcome of one consumed message.
func (m *Metrics) Event(topic, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(topic, outcome).Inc()
}

// LastSeenDropped counts a dropped last-seen update.
func (m *Metrics) LastSeenDropped() {
	if m == nil {
		return
	}
	m.lastSeenDropped.Inc()
}

// SessionsPurged counts purged refresh tokens.
func (m *Metrics) SessionsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsPurged.Add(float64(n))
}
