package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bams-platform/bams-api/internal/service"
)

// Metrics records request counts and latencies per route. Probe and scrape
// endpoints are excluded so they do not drown the archive API series, and
// unmatched paths collapse into a single label to keep cardinality bounded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		switch c.Request.URL.Path {
		case "/metrics", "/health", "/ready":
			c.Next()
			return
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
