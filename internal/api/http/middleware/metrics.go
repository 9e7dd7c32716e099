package middleware

import (
	"strconv"

	"github.com/GoSim-25-26J-441/plot-registry/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics counts requests by matched route template and status code.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
