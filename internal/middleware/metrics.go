package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/testtrack/prometheus"
)

// MetricsMiddleware records per-route HTTP request counts and latencies
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if prometheus.HttpRequestsTotal == nil {
			return next(c)
		}

		start := time.Now()
		err := next(c)
		duration := time.Since(start).Seconds()

		method := c.Request().Method
		path := c.Path()
		status := strconv.Itoa(c.Response().Status)

		prometheus.HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
		prometheus.HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration)

		return err
	}
}
