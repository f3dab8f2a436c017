package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rhythmlink"

// Metrics holds the service's collectors on a private registry. All recording
// methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	messagesSent   *prometheus.CounterVec
	threadsCreated prometheus.Counter
	joinRequests   *prometheus.CounterVec
	groupsCreated  prometheus.Counter
	httpDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages appended to threads, by sending side.",
		}, []string{"side"}),
		threadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_created_total",
			Help:      "Threads created on first contact between a user and a group.",
		}),
		joinRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "join_requests_total",
			Help:      "Join request transitions, by outcome.",
		}, []string{"outcome"}),
		groupsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_created_total",
			Help:      "Groups created.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesSent,
		m.threadsCreated,
		m.joinRequests,
		m.groupsCreated,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) MessageSent(side string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(side).Inc()
}

func (m *Metrics) ThreadCreated() {
	if m == nil {
		return
	}
	m.threadsCreated.Inc()
}

// JoinRequest records a request outcome: "created", "accepted" or "denied".
func (m *Metrics) JoinRequest(outcome string) {
	if m == nil {
		return
	}
	m.joinRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GroupCreated() {
	if m == nil {
		return
	}
	m.groupsCreated.Inc()
}

// Middleware times each request under its route pattern. Errors are rendered
// through the app's error handler first so the recorded status is the real one.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		route := "unmatched"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		m.httpDuration.
			WithLabelValues(c.Method(), route, strconv.Itoa(c.Response().StatusCode())).
			Observe(time.Since(start).Seconds())
		return nil
	}
}
