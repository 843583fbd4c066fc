package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// LocalOnly restricts a route group to loopback clients. Admin operations
// (pack cache refresh, payment record lookup) are reachable only from the
// host itself.
func LocalOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := net.ParseIP(c.ClientIP())
		if ip == nil || !ip.IsLoopback() {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden: local access only"})
			c.Abort()
			return
		}
		c.Next()
	}
}
