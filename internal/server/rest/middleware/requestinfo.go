package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/jorenvermeersch/budget-api/internal/server/audit"
)

// RequestInfo stores the client IP, user agent and requested resource in the
// request context for security events.
func RequestInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := audit.RequestInfo{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Resource:  c.Request.Method + " " + c.Request.URL.Path,
		}
		c.Request = c.Request.WithContext(audit.WithRequestInfo(c.Request.Context(), info))
		c.Next()
	}
}
