// Package transactions persists the money movements booked by users.
package transactions

import (
	"context"

	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetByID(ctx context.Context, id int64) (*models.Transaction, error)

	// List returns all transactions when userID is empty, otherwise only
	// the ones booked by that user. Newest first.
	List(ctx context.Context, userID string) ([]*models.Transaction, error)

	Delete(ctx context.Context, id int64) error
}
