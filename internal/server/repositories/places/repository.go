// Package places persists the shops, landlords and other counterparties that
// transactions are booked against.
package places

import (
	"context"

	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, place *models.Place) (*models.Place, error)
	GetByID(ctx context.Context, id int64) (*models.Place, error)
	List(ctx context.Context) ([]*models.Place, error)
	Delete(ctx context.Context, id int64) error
}
