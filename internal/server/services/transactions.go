package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/repomanager"
)

type TransactionInput struct {
	AmountCents int64
	Date        time.Time
	PlaceID     int64
}

type TransactionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	recorder    SecurityRecorder
}

func NewTransactionService(db *sql.DB, m repomanager.RepositoryManager, recorder SecurityRecorder) *TransactionService {
	return &TransactionService{db: db, repomanager: m, recorder: recorder}
}

func transactionNotFound(id int64) error {
	return common.NotFound(fmt.Sprintf("no transaction with id %d exists", id))
}

// List returns every transaction for admins and the caller's own otherwise.
func (s *TransactionService) List(ctx context.Context, session *models.Session) ([]*models.Transaction, error) {
	userID := session.UserID
	if session.IsAdmin() {
		userID = ""
	}

	txs, err := s.repomanager.Transactions(s.db).List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) GetByID(ctx context.Context, session *models.Session, id int64) (*models.Transaction, error) {
	t, err := s.repomanager.Transactions(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, transactionNotFound(id)
		}
		return nil, fmt.Errorf("error loading transaction: %w", err)
	}

	if err := checkOwnerOrAdmin(ctx, s.recorder, session, t.UserID, "transaction:"+strconv.FormatInt(id, 10)); err != nil {
		return nil, err
	}
	return t, nil
}

// Create books a transaction for the session's user at an existing place.
func (s *TransactionService) Create(ctx context.Context, session *models.Session, in TransactionInput) (*models.Transaction, error) {
	if _, err := s.repomanager.Places(s.db).GetByID(ctx, in.PlaceID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.Validation("unknown place", map[string]any{"placeId": fmt.Sprintf("no place with id %d exists", in.PlaceID)})
		}
		return nil, fmt.Errorf("error loading place: %w", err)
	}

	t := &models.Transaction{
		AmountCents: in.AmountCents,
		Date:        in.Date,
		UserID:      session.UserID,
		PlaceID:     in.PlaceID,
	}

	created, err := s.repomanager.Transactions(s.db).Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("error creating transaction: %w", err)
	}
	return created, nil
}

func (s *TransactionService) Delete(ctx context.Context, session *models.Session, id int64) error {
	if _, err := s.GetByID(ctx, session, id); err != nil {
		return err
	}

	if err := s.repomanager.Transactions(s.db).Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return transactionNotFound(id)
		}
		return fmt.Errorf("error deleting transaction: %w", err)
	}
	return nil
}
