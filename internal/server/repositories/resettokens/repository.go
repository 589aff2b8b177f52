// Package resettokens persists pending password reset requests, at most one
// per user.
package resettokens

import (
	"context"

	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, req *models.ResetRequest) error

	// FindByUserID returns common.ErrorNotFound when the user has no pending request.
	FindByUserID(ctx context.Context, userID string) (*models.ResetRequest, error)

	// DeleteByUserID removes any pending request. Deleting nothing is not an error.
	DeleteByUserID(ctx context.Context, userID string) error

	// Consume deletes the request only if its hash still matches, returning
	// common.ErrorNotFound otherwise. This makes tokens single-use even
	// under concurrent resets.
	Consume(ctx context.Context, userID string, tokenHash []byte) error
}
