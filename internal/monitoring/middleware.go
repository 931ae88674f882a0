package monitoring

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
)

// slowAssessmentThreshold flags requests that took longer than one model
// inference plus explanation pass should.
const slowAssessmentThreshold = 500 * time.Millisecond

// MonitoringMiddleware creates Gin middleware for request monitoring.
// Health probes are counted but not logged; they would drown out the
// assessment traffic the logs exist for.
func MonitoringMiddleware(metrics *Metrics, logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		metrics.IncrementRequest()

		ip := c.ClientIP()
		userAgent := c.GetHeader("User-Agent")
		method := c.Request.Method
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.RecordResponseTime(duration)
		metrics.RecordRequestByStatus(statusCode)

		if statusCode >= 400 {
			metrics.IncrementError()
		}

		if path != "/health" {
			logger.RequestLogger(method, path, ip, userAgent, statusCode, duration)
		}

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				logger.APIErrorLogger(err.Err, method, path, ip, statusCode)
			}
		}

		if path == "/assess" && duration > slowAssessmentThreshold {
			logger.SystemLogger("slow_assessment",
				fmt.Sprintf("%s took %s", path, duration))
		}

		if statusCode >= 500 {
			logger.SystemLogger("server_error",
				fmt.Sprintf("Status %d for %s %s", statusCode, method, path))
		}
	}
}
