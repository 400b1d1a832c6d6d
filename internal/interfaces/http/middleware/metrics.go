package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPRecorder receives one observation per completed request.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
}

// unmatchedRoute labels requests that hit no registered route, keeping the
// path label bounded.
const unmatchedRoute = "unmatched"

// Metrics records request count and latency by route template.
func Metrics(rec HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rec == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		rec.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

//Personal.AI order the ending
