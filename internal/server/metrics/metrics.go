package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/tallysync/pkg/api"
)

const namespace = "tallysync"

// Metrics holds the server's prometheus collectors.
type Metrics struct {
	registry           *prometheus.Registry
	subscribers        prometheus.Gauge
	subscribersDropped prometheus.Counter
	eventsPublished    *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	incrementsApplied  prometheus.Counter
}

// New creates collectors registered on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_subscribers",
			Help:      "Number of open live update streams.",
		}),
		subscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_subscribers_dropped_total",
			Help:      "Subscribers pruned after a failed write.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_published_total",
			Help:      "Live update events published, by type.",
		}, []string{"type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		incrementsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "increments_applied_total",
			Help:      "Single-unit increments applied, including batched ones.",
		}),
	}

	m.registry.MustRegister(
		m.subscribers,
		m.subscribersDropped,
		m.eventsPublished,
		m.httpRequests,
		m.httpDuration,
		m.incrementsApplied,
	)

	return m
}

// Handler returns the /metrics handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) SubscriberAdded() {
	m.subscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	m.subscribers.Dec()
}

func (m *Metrics) SubscriberDropped() {
	m.subscribersDropped.Inc()
}

func (m *Metrics) EventPublished(eventType api.EventType) {
	m.eventsPublished.WithLabelValues(string(eventType)).Inc()
}

// IncrementsApplied учитывает примененные единичные инкременты
func (m *Metrics) IncrementsApplied(n int64) {
	if n > 0 {
		m.incrementsApplied.Add(float64(n))
	}
}

// ObserveRequest учитывает завершенный HTTP запрос
func (m *Metrics) ObserveRequest(method string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(duration.Seconds())
}
