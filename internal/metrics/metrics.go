// Package metrics exposes the Prometheus collectors for the API and
// the mail worker.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_backend",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "booking_backend",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	emailEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_backend",
			Name:      "email_events_total",
			Help:      "Email events by template and outcome.",
		},
		[]string{"template", "outcome"},
	)

	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "booking_backend",
			Name:      "payment_webhook_events_total",
			Help:      "Payment webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers all collectors. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, emailEvents, webhookEvents)
	})
}

// IncEmailEvent counts one processed email event.
func IncEmailEvent(template, outcome string) {
	emailEvents.WithLabelValues(template, outcome).Inc()
}

// IncWebhookEvent counts one webhook delivery.
func IncWebhookEvent(outcome string) {
	webhookEvents.WithLabelValues(outcome).Inc()
}

// HTTPMiddleware records request counts and latency per route.
func HTTPMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			return err
		}
	}
}
