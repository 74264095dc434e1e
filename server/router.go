// Package server relays transcoding sessions to WebSocket clients and
// exposes a small HTTP API for inspecting them.
package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"ws-live-server/internal/logger"
	"ws-live-server/internal/metrics"
)

// NewRouter wires the WebSocket endpoint, the session API, health and
// metrics onto a gin engine. m may be nil.
func NewRouter(sm *Manager, m *metrics.Metrics, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(log))
	if m != nil {
		r.Use(metrics.RequestMiddleware(m))
	}

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// WebSocket routes; the source is passed as ?url=
	r.GET("/", sm.handleWebSocket)
	r.GET("/ws", sm.handleWebSocket)

	// API routes
	api := r.Group("/api")
	{
		api.GET("/sessions", sm.handleListSessions)
		api.GET("/sessions/:id/stats", sm.handleGetSessionStats)
		api.DELETE("/sessions/:id", sm.handleDisconnectSession)
	}

	r.GET("/health", sm.handleHealth)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler(func() {
			m.SetClients(sm.ClientCount())
		})))
	}

	return r
}
