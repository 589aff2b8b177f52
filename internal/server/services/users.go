package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/logging"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/repomanager"
)

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	recorder    SecurityRecorder
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, recorder SecurityRecorder, logger logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		recorder:    recorder,
		logger:      logger.With("module", "user_service"),
	}
}

func userNotFound(id string) error {
	return common.NotFound(fmt.Sprintf("no user with id %s exists", id))
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

// GetByID returns the user if the session belongs to that user or to an admin.
func (s *UserService) GetByID(ctx context.Context, session *models.Session, id string) (*models.User, error) {
	if err := checkOwnerOrAdmin(ctx, s.recorder, session, id, "user:"+id); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, userNotFound(id)
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

func (s *UserService) Me(ctx context.Context, session *models.Session) (*models.User, error) {
	return s.GetByID(ctx, session, session.UserID)
}

// Delete removes a user. Callers are expected to have checked the admin role.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repomanager.Users(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return userNotFound(id)
		}
		return fmt.Errorf("error deleting user: %w", err)
	}
	s.logger.Info(ctx, "user deleted", "user_id", id)
	return nil
}
