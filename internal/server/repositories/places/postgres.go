package places

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

func (r *PostgresRepository) Create(ctx context.Context, place *models.Place) (*models.Place, error) {
	query :=
		`INSERT INTO places (name, rating)
		 VALUES ($1, $2)
		 RETURNING id`

	if err := r.db.QueryRowContext(ctx, query, place.Name, place.Rating).Scan(&place.ID); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return place, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Place, error) {
	query := `SELECT id, name, rating FROM places WHERE id = $1`

	p, err := scanPlace(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Place, error) {
	query := `SELECT id, name, rating FROM places ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM places WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return dbx.RequireAffected(res)
}

func scanPlace(s interface{ Scan(...any) error }) (*models.Place, error) {
	p := &models.Place{}
	var rating sql.NullInt64
	if err := s.Scan(&p.ID, &p.Name, &rating); err != nil {
		return nil, err
	}
	if rating.Valid {
		v := int(rating.Int64)
		p.Rating = &v
	}
	return p, nil
}
