package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"parcel-audit/pkg/logger"
)

// Logger emits one structured line per request, including byte counts
// for upload and export traffic.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.GetLogger().WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"query":      c.Request.URL.RawQuery,
			"ip":         c.ClientIP(),
			"bytes_in":   c.Request.ContentLength,
			"bytes_out":  c.Writer.Size(),
			"latency_ms": time.Since(start).Milliseconds(),
			"errors":     c.Errors.String(),
		}).Info("Request processed")
	}
}
