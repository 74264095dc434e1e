package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// RequestMiddleware returns gin middleware that counts requests by matched
// route and status class (2xx, 4xx, ...).
func RequestMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.IncRequests(route, strconv.Itoa(c.Writer.Status()/100)+"xx")
	}
}
