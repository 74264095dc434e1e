package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// getUpgrader returns a WebSocket upgrader configured to allow all origins
func getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// handleWebSocket upgrades the connection and relays a fresh transcoding
// session for the url query parameter.
func (sm *Manager) handleWebSocket(c *gin.Context) {
	source := c.Query(SourceQueryParam)

	upgrader := getUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sm.log.Warn("websocket upgrade error", "error", err)
		return
	}

	if source == "" {
		sm.log.Warn("websocket opened without source", "path", c.Request.URL.String())
		writeClose(conn, reasonProtocol)
		if sm.metrics != nil {
			sm.metrics.IncConnectionsClosed(reasonProtocol.label)
		}
		conn.Close()
		return
	}

	if _, err := sm.AddClient(conn, source); err != nil {
		sm.log.Error("error adding client", "error", err)
		writeClose(conn, reasonError.withText(err.Error()))
		conn.Close()
	}
}

// handleListSessions returns all connected clients and their sessions
func (sm *Manager) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": sm.ListClients()})
}

// handleGetSessionStats returns statistics about a specific client session
func (sm *Manager) handleGetSessionStats(c *gin.Context) {
	stats, err := sm.GetClientStats(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// handleDisconnectSession closes a client's connection and stops its transcoder
func (sm *Manager) handleDisconnectSession(c *gin.Context) {
	id := c.Param("id")

	if err := sm.Disconnect(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Session stopped successfully",
		"id":      id,
	})
}

// handleHealth reports liveness and the number of relayed sessions
func (sm *Manager) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"sessions":  sm.ClientCount(),
		"profile":   sm.profiles.Current().Name,
	})
}
