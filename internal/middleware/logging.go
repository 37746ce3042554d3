package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kyvra-tech/myip/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// StructuredLogger creates a structured access log middleware.  When m is
// non-nil every request is also recorded in the HTTP metrics.
func StructuredLogger(logger *logrus.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		if m != nil {
			m.RecordHTTPRequest(c.Request.Method, endpoint(c), statusCode, latency)
		}

		entry := logger.WithFields(logrus.Fields{
			"request_id":  GetRequestID(c),
			"method":      c.Request.Method,
			"path":        path,
			"query":       query,
			"status":      statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"error_count": len(c.Errors),
		})

		// Log with appropriate level
		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Error("Request completed with errors")
		case statusCode >= 500:
			entry.Error("Request failed with server error")
		case statusCode >= 400:
			entry.Info("Request failed with client error")
		default:
			entry.Debug("Request completed successfully")
		}
	}
}

// endpoint returns the route pattern of the request so that metric labels
// stay bounded
func endpoint(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}
