package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger returns gin middleware that logs each request with method,
// path, status, duration_ms, and response size.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Int("duration_ms", int(time.Since(start).Milliseconds())),
			slog.Int("size", c.Writer.Size()),
		)
	}
}
