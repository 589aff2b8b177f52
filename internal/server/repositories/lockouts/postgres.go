package lockouts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/dbx"
	"github.com/jorenvermeersch/budget-api/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.LockoutRecord, error) {
	query :=
		`SELECT failed_attempts, lockout_end FROM account_lockouts
		 WHERE user_id = $1`

	rec := &models.LockoutRecord{UserID: userID}
	var end sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&rec.FailedAttempts, &end)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if end.Valid {
		rec.LockoutEnd = &end.Time
	}

	return rec, nil
}

func (r *PostgresRepository) Init(ctx context.Context, userID string) error {
	query :=
		`INSERT INTO account_lockouts (user_id, failed_attempts, lockout_end)
		 VALUES ($1, 0, NULL)
		 ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IncrementFailures(ctx context.Context, userID string, threshold int, lockUntil time.Time) (*models.LockoutRecord, error) {
	query :=
		`INSERT INTO account_lockouts AS l (user_id, failed_attempts, lockout_end)
		 VALUES ($1, 1, CASE WHEN 1 >= $2::int THEN $3::timestamptz END)
		 ON CONFLICT (user_id) DO UPDATE
		 SET failed_attempts = l.failed_attempts + 1,
		     lockout_end = CASE WHEN l.failed_attempts + 1 >= $2::int THEN $3::timestamptz ELSE l.lockout_end END
		 RETURNING failed_attempts, lockout_end`

	rec := &models.LockoutRecord{UserID: userID}
	var end sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, userID, threshold, lockUntil).Scan(&rec.FailedAttempts, &end); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if end.Valid {
		rec.LockoutEnd = &end.Time
	}

	return rec, nil
}

func (r *PostgresRepository) Reset(ctx context.Context, userID string) error {
	query :=
		`UPDATE account_lockouts SET failed_attempts = 0, lockout_end = NULL
		 WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
