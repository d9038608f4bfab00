package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/anonto42/nano-feed/backend/pkg/metrics"
	"github.com/labstack/echo/v4"
)

// Metrics records the count and latency of every request by route.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveRequest(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
