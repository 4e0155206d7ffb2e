package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GinLogger returns gin middleware that logs each request through the
// process logger at debug level (info for non-2xx).
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"status":  status,
			"method":  c.Request.Method,
			"path":    path,
			"latency": time.Since(start).Round(time.Millisecond).String(),
		})
		if status >= 400 {
			entry.Info("request")
		} else {
			entry.Debug("request")
		}
	}
}

// GinRecovery returns gin middleware that recovers panics and logs them.
func GinRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Errorf("panic recovered: %v", recovered)
		c.AbortWithStatusJSON(500, gin.H{"error": map[string]any{
			"type":    "internal_error",
			"message": "internal server error",
		}})
	})
}
