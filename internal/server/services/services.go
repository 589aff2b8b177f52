// Package services holds the application logic behind the HTTP and gRPC
// surfaces: authentication, account lockout, password resets and the budget
// resources. Services depend on narrow interfaces so tests can swap in fakes.
package services

import (
	"context"

	"github.com/jorenvermeersch/budget-api/internal/server/audit"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, encoded string) (bool, error)
}

type TokenService interface {
	Issue(user *models.User) (string, error)
	Verify(token string) (*models.Session, error)
}

type BreachChecker interface {
	IsBreached(ctx context.Context, password string) (bool, error)
}

type SecurityRecorder interface {
	Record(ctx context.Context, e audit.Event)
}
