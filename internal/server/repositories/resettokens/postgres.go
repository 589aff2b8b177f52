package resettokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jorenvermeersch/budget-api/internal/common"
	"github.com/jorenvermeersch/budget-api/internal/dbx"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, req *models.ResetRequest) error {
	query :=
		`INSERT INTO password_reset_requests (user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query, req.UserID, req.TokenHash, req.ExpiresAt, req.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) (*models.ResetRequest, error) {
	query :=
		`SELECT user_id, token_hash, expires_at, created_at
		 FROM password_reset_requests
		 WHERE user_id = $1`

	req := &models.ResetRequest{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&req.UserID, &req.TokenHash, &req.ExpiresAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return req, nil
}

func (r *PostgresRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM password_reset_requests WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, userID string, tokenHash []byte) error {
	query :=
		`DELETE FROM password_reset_requests
		 WHERE user_id = $1 AND token_hash = $2`

	res, err := r.db.ExecContext(ctx, query, userID, tokenHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.RequireAffected(res)
}
