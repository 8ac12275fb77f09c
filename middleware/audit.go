package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

const clientIPKey = "client_ip"

// Proxy headers checked in order of trust before falling back to RemoteAddr.
var ipHeaders = []string{"X-Forwarded-For", "X-Real-Ip", "CF-Connecting-IP"}

// AuditMiddleware resolves the real client IP once per request and stashes it
// in the context for audit log rows.
func AuditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(clientIPKey, resolveClientIP(c))
		c.Next()
	}
}

// GetIPFromContext returns the IP resolved by AuditMiddleware, resolving
// directly when the middleware did not run.
func GetIPFromContext(c *gin.Context) string {
	if ip := c.GetString(clientIPKey); ip != "" {
		return ip
	}
	return resolveClientIP(c)
}

func resolveClientIP(c *gin.Context) string {
	for _, header := range ipHeaders {
		value := c.GetHeader(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For may carry a chain; the first hop is the client.
		ip := strings.TrimSpace(strings.SplitN(value, ",", 2)[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return ip
}
