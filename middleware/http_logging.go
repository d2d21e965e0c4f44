package middleware

import (
	"time"

	"github.com/abdulllahhh/Comfy/common/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// quietPaths are polled by orchestrators and scrapers.
var quietPaths = map[string]bool{"/health": true, "/metrics": true}

// RequestLogger emits one line per request after the handler chain. Routes
// are logged by template so user ids in paths stay out of the message.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if quietPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		began := time.Now()
		c.Next()

		status := c.Writer.Status()
		log := logger.FromContext(c, base).With(
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(began)),
			zap.String("client_ip", c.ClientIP()),
		)
		if uid := c.GetString(ContextUserID); uid != "" {
			log = log.With(zap.String("user_id", uid))
		}

		switch {
		case status >= 500:
			log.Error("http_request")
		case status >= 400:
			log.Warn("http_request")
		default:
			log.Info("http_request")
		}
	}
}
