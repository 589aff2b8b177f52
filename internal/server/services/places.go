package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/repomanager"
)

type PlaceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewPlaceService(db *sql.DB, m repomanager.RepositoryManager) *PlaceService {
	return &PlaceService{db: db, repomanager: m}
}

func placeNotFound(id int64) error {
	return common.NotFound(fmt.Sprintf("no place with id %d exists", id))
}

func (s *PlaceService) List(ctx context.Context) ([]*models.Place, error) {
	places, err := s.repomanager.Places(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing places: %w", err)
	}
	return places, nil
}

func (s *PlaceService) GetByID(ctx context.Context, id int64) (*models.Place, error) {
	place, err := s.repomanager.Places(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, placeNotFound(id)
		}
		return nil, fmt.Errorf("error loading place: %w", err)
	}
	return place, nil
}

func (s *PlaceService) Create(ctx context.Context, name string, rating *int) (*models.Place, error) {
	place := &models.Place{Name: strings.TrimSpace(name), Rating: rating}

	created, err := s.repomanager.Places(s.db).Create(ctx, place)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.Validation("a place with this name already exists", map[string]any{"name": "is already in use"})
		}
		return nil, fmt.Errorf("error creating place: %w", err)
	}
	return created, nil
}

func (s *PlaceService) Delete(ctx context.Context, id int64) error {
	if err := s.repomanager.Places(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return placeNotFound(id)
		}
		return fmt.Errorf("error deleting place: %w", err)
	}
	return nil
}
