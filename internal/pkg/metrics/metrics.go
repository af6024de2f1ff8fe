package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hfactor"

// Metrics holds the collectors of one server instance. A nil *Metrics is valid
// and records nothing, which keeps handlers usable in tests without a registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	webhookEvents    *prometheus.CounterVec
	webhookActions   *prometheus.CounterVec
	catalogRequests  *prometheus.CounterVec
	priceFetchErrors prometheus.Counter
	contactRequests  *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Request processing latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook events by type and outcome (handled, ignored, failed).",
		}, []string{"type", "outcome"}),
		webhookActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "actions_total",
			Help:      "Side-effect actions run by webhook handlers.",
		}, []string{"action", "status"}),
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "requests_total",
			Help:      "Catalog requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		priceFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "price_fetch_errors_total",
			Help:      "Price listings that failed and degraded to an unpriced entry.",
		}),
		contactRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contact",
			Name:      "submissions_total",
			Help:      "Contact form submissions by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.webhookEvents,
		m.webhookActions,
		m.catalogRequests,
		m.priceFetchErrors,
		m.contactRequests,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// Middleware records request count and latency per matched route.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		m.httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) WebhookAction(action, status string) {
	if m == nil {
		return
	}
	m.webhookActions.WithLabelValues(action, status).Inc()
}

func (m *Metrics) CatalogRequest(mode, outcome string) {
	if m == nil {
		return
	}
	m.catalogRequests.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) PriceFetchError() {
	if m == nil {
		return
	}
	m.priceFetchErrors.Inc()
}

func (m *Metrics) ContactSubmission(outcome string) {
	if m == nil {
		return
	}
	m.contactRequests.WithLabelValues(outcome).Inc()
}
