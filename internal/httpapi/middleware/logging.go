package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"wa-gateway/internal/logger"
)

// RequestLogger emits one structured entry per request on the gateway's
// own logger.Logger instead of stdlib log, so every log line shares one
// sink/format with the rest of the process.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := logger.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if userID, exists := c.Get(string(UserIDKey)); exists {
			fields["user_id"] = userID
		}

		switch {
		case c.Writer.Status() >= 500:
			log.ErrorWithFields("http request", fields)
		case c.Writer.Status() >= 400:
			log.WarnWithFields("http request", fields)
		default:
			log.InfoWithFields("http request", fields)
		}
	}
}
