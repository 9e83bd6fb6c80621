// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "letscrap_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "letscrap_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ScrapRequestsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "letscrap_scrap_requests_created_total",
			Help: "Scrap requests created",
		},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "letscrap_scrap_request_transitions_total",
			Help: "Scrap request status transitions by target status",
		},
		[]string{"status"},
	)

	BillsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "letscrap_bills_generated_total",
			Help: "Bills generated",
		},
	)

	ChatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "letscrap_chat_messages_total",
			Help: "Chat messages persisted and broadcast",
		},
	)

	ChatConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "letscrap_chat_connections",
			Help: "Open chat socket connections",
		},
	)
)

// Middleware records request count and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		route := c.Route().Path
		HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
