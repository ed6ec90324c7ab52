package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shieldforce/guard-dispatch/internal/models"
)

const personnelColumns = `
	id, user_id, full_name, latitude, longitude, hourly_rate, skills,
	shield_score, reliability_score, is_active, is_available, is_standby,
	max_travel_distance_km, created_at, updated_at`

// PersonnelRepository handles personnel database operations
type PersonnelRepository struct {
	db *sqlx.DB
}

// NewPersonnelRepository creates a new PersonnelRepository
func NewPersonnelRepository(db *sqlx.DB) *PersonnelRepository {
	return &PersonnelRepository{db: db}
}

// GetByID returns a guard, or nil when not found
func (r *PersonnelRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Personnel, error) {
	var p models.Personnel
	err := r.db.GetContext(ctx, &p, `SELECT `+personnelColumns+` FROM personnel WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get personnel %s: %w", id, err)
	}
	return &p, nil
}

// GetByUserID resolves the guard profile of an authenticated user
func (r *PersonnelRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Personnel, error) {
	var p models.Personnel
	err := r.db.GetContext(ctx, &p, `SELECT `+personnelColumns+` FROM personnel WHERE user_id = $1`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get personnel for user %s: %w", userID, err)
	}
	return &p, nil
}

// ListActive returns every active guard not in excluded.
// A NULL is_active is treated as inactive.
func (r *PersonnelRepository) ListActive(ctx context.Context, excluded []uuid.UUID) ([]*models.Personnel, error) {
	ids := make([]string, len(excluded))
	for i, id := range excluded {
		ids[i] = id.String()
	}

	personnel := []*models.Personnel{}
	query := `SELECT ` + personnelColumns + ` FROM personnel
		WHERE is_active IS TRUE
		  AND NOT (id::text = ANY($1))
		ORDER BY shield_score DESC, id`
	if err := r.db.SelectContext(ctx, &personnel, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list active personnel: %w", err)
	}
	return personnel, nil
}

// ListStandby returns active, available standby guards other than
// exclude, highest Shield Score first
func (r *PersonnelRepository) ListStandby(ctx context.Context, exclude *uuid.UUID, limit int) ([]*models.Personnel, error) {
	personnel := []*models.Personnel{}
	query := `SELECT ` + personnelColumns + ` FROM personnel
		WHERE is_standby AND is_available AND is_active IS TRUE
		  AND ($1::uuid IS NULL OR id <> $1::uuid)
		ORDER BY shield_score DESC, id
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &personnel, query, exclude, limit); err != nil {
		return nil, fmt.Errorf("failed to list standby personnel: %w", err)
	}
	return personnel, nil
}
