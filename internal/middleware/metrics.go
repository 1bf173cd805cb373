package middleware

import (
	"time"

	"upkeeper/services"

	"github.com/gin-gonic/gin"
)

/**
 * Request accounting middleware
 * @description
 * - Counts every request the HTTP server handles, keyed by route template
 * - Records handling latency into the duration histogram
 * - Requests that finish with status >= 400 are additionally counted as errors
 * - Feeds the counters surfaced by the healthz endpoint
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		services.IncrementRequestCount(route)
		services.RecordRequestDuration(route, duration)
		if statusCode >= 400 {
			services.IncrementErrorCount(route)
		}
	}
}

func GetTotalRequests() int64 {
	return services.GetTotalRequestCount()
}

func GetErrorRequests() int64 {
	return services.GetTotalErrorCount()
}
