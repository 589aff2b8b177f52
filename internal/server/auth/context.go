package auth

import (
	"context"

	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type ctxKey string

const sessionKey ctxKey = "session"

func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the session stored by WithSession, if any.
func SessionFrom(ctx context.Context) (*models.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*models.Session)
	return s, ok && s != nil
}
