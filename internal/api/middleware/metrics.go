package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/pkg/metrics"
)

// RequestMetrics records every request on m and logs it
func RequestMetrics(m *metrics.Manager, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		elapsed := time.Since(start)
		m.RecordHTTPRequest(endpoint, c.Request.Method, c.Writer.Status(), elapsed)

		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": elapsed,
		}).Debug("Request served")
	}
}
