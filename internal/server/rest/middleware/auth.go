package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jorenvermeersch/budget-api/internal/server/auth"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type SessionChecker interface {
	CheckAndParseSession(ctx context.Context, header string) (*models.Session, error)
	CheckRole(ctx context.Context, required models.Role, session *models.Session) error
}

// Authenticate requires a valid bearer token and stores the session in the
// request context.
func Authenticate(checker SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := checker.CheckAndParseSession(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), session))
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(checker SessionChecker, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, _ := auth.SessionFrom(c.Request.Context())
		if err := checker.CheckRole(c.Request.Context(), role, session); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
