// Package users declares the persistence contract for user accounts and its
// PostgreSQL implementation.
package users

import (
	"context"

	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in CreatedAt. A taken email yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)

	UpdatePasswordHash(ctx context.Context, id string, hash string) error
	Delete(ctx context.Context, id string) error
}
