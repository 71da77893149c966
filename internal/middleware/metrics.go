package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-portal-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics observes every request under its route template and API group.
// Requests that match no route share one series so arbitrary URLs cannot grow
// the label set.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(RouteGroup(path), c.Request.Method, path, c.Writer.Status(), duration)
	}
}

// RouteGroup returns the API area of a route template: the first segment after
// the "/api/vN" prefix, or "system" for probes and docs outside it.
func RouteGroup(path string) string {
	if path == unmatchedRoute {
		return unmatchedRoute
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 || segments[0] != "api" {
		return "system"
	}
	rest := segments[1:]
	if len(rest[0]) > 1 && rest[0][0] == 'v' {
		rest = rest[1:]
	}
	if len(rest) == 0 || rest[0] == "" {
		return "system"
	}
	return rest[0]
}
