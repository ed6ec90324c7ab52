package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shieldforce/guard-dispatch/internal/models"
)

// AvailabilityRepository handles weekly availability, blocked dates and
// special availability overrides
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new AvailabilityRepository
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// dateOnly strips the clock so DATE comparisons use the calendar day
func dateOnly(d time.Time) string {
	return d.Format("2006-01-02")
}

// ============================================================================
// WEEKLY
// ============================================================================

// GetWeekly returns the weekly record for one day, or nil
func (r *AvailabilityRepository) GetWeekly(ctx context.Context, personnelID uuid.UUID, dayOfWeek int) (*models.WeeklyAvailability, error) {
	var w models.WeeklyAvailability
	query := `
		SELECT id, personnel_id, day_of_week, start_time, end_time, is_available, updated_at
		FROM personnel_availability
		WHERE personnel_id = $1 AND day_of_week = $2`
	err := r.db.GetContext(ctx, &w, query, personnelID, dayOfWeek)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weekly availability: %w", err)
	}
	return &w, nil
}

// ListWeekly returns all weekly records for a guard ordered by day
func (r *AvailabilityRepository) ListWeekly(ctx context.Context, personnelID uuid.UUID) ([]*models.WeeklyAvailability, error) {
	weekly := []*models.WeeklyAvailability{}
	query := `
		SELECT id, personnel_id, day_of_week, start_time, end_time, is_available, updated_at
		FROM personnel_availability
		WHERE personnel_id = $1
		ORDER BY day_of_week`
	if err := r.db.SelectContext(ctx, &weekly, query, personnelID); err != nil {
		return nil, fmt.Errorf("failed to list weekly availability: %w", err)
	}
	return weekly, nil
}

// UpsertWeekly inserts or replaces the record for a day of the week
func (r *AvailabilityRepository) UpsertWeekly(ctx context.Context, w *models.WeeklyAvailability) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.UpdatedAt = time.Now()

	query := `
		INSERT INTO personnel_availability (id, personnel_id, day_of_week, start_time, end_time, is_available, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (personnel_id, day_of_week) DO UPDATE
		SET start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    is_available = EXCLUDED.is_available,
		    updated_at = EXCLUDED.updated_at
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		w.ID, w.PersonnelID, w.DayOfWeek, w.StartTime, w.EndTime, w.IsAvailable, w.UpdatedAt,
	).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert weekly availability: %w", err)
	}
	return nil
}

// ============================================================================
// BLOCKED DATES
// ============================================================================

// GetBlocked returns the blocked date record, or nil
func (r *AvailabilityRepository) GetBlocked(ctx context.Context, personnelID uuid.UUID, date time.Time) (*models.BlockedDate, error) {
	var b models.BlockedDate
	query := `
		SELECT id, personnel_id, blocked_date, reason, created_at
		FROM blocked_dates
		WHERE personnel_id = $1 AND blocked_date = $2::date`
	err := r.db.GetContext(ctx, &b, query, personnelID, dateOnly(date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blocked date: %w", err)
	}
	return &b, nil
}

// ListBlocked returns blocked dates in [from, to]
func (r *AvailabilityRepository) ListBlocked(ctx context.Context, personnelID uuid.UUID, from, to time.Time) ([]*models.BlockedDate, error) {
	blocked := []*models.BlockedDate{}
	query := `
		SELECT id, personnel_id, blocked_date, reason, created_at
		FROM blocked_dates
		WHERE personnel_id = $1 AND blocked_date BETWEEN $2::date AND $3::date
		ORDER BY blocked_date`
	if err := r.db.SelectContext(ctx, &blocked, query, personnelID, dateOnly(from), dateOnly(to)); err != nil {
		return nil, fmt.Errorf("failed to list blocked dates: %w", err)
	}
	return blocked, nil
}

// AddBlocked records a blocked date; re-blocking the same date updates the reason
func (r *AvailabilityRepository) AddBlocked(ctx context.Context, b *models.BlockedDate) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	b.CreatedAt = time.Now()

	query := `
		INSERT INTO blocked_dates (id, personnel_id, blocked_date, reason, created_at)
		VALUES ($1, $2, $3::date, $4, $5)
		ON CONFLICT (personnel_id, blocked_date) DO UPDATE SET reason = EXCLUDED.reason
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, query, b.ID, b.PersonnelID, dateOnly(b.Date), b.Reason, b.CreatedAt).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to add blocked date: %w", err)
	}
	return nil
}

// RemoveBlocked deletes a blocked date, reporting whether one existed
func (r *AvailabilityRepository) RemoveBlocked(ctx context.Context, personnelID uuid.UUID, date time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM blocked_dates WHERE personnel_id = $1 AND blocked_date = $2::date`,
		personnelID, dateOnly(date))
	if err != nil {
		return false, fmt.Errorf("failed to remove blocked date: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ============================================================================
// SPECIAL AVAILABILITY
// ============================================================================

// GetSpecial returns the override for a date, or nil
func (r *AvailabilityRepository) GetSpecial(ctx context.Context, personnelID uuid.UUID, date time.Time) (*models.SpecialAvailability, error) {
	var s models.SpecialAvailability
	query := `
		SELECT id, personnel_id, special_date, start_time, end_time, created_at
		FROM special_availability
		WHERE personnel_id = $1 AND special_date = $2::date`
	err := r.db.GetContext(ctx, &s, query, personnelID, dateOnly(date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get special availability: %w", err)
	}
	return &s, nil
}

// ListSpecial returns overrides in [from, to]
func (r *AvailabilityRepository) ListSpecial(ctx context.Context, personnelID uuid.UUID, from, to time.Time) ([]*models.SpecialAvailability, error) {
	special := []*models.SpecialAvailability{}
	query := `
		SELECT id, personnel_id, special_date, start_time, end_time, created_at
		FROM special_availability
		WHERE personnel_id = $1 AND special_date BETWEEN $2::date AND $3::date
		ORDER BY special_date`
	if err := r.db.SelectContext(ctx, &special, query, personnelID, dateOnly(from), dateOnly(to)); err != nil {
		return nil, fmt.Errorf("failed to list special availability: %w", err)
	}
	return special, nil
}

// UpsertSpecial inserts or replaces the override for a date
func (r *AvailabilityRepository) UpsertSpecial(ctx context.Context, s *models.SpecialAvailability) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()

	query := `
		INSERT INTO special_availability (id, personnel_id, special_date, start_time, end_time, created_at)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		ON CONFLICT (personnel_id, special_date) DO UPDATE
		SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		s.ID, s.PersonnelID, dateOnly(s.Date), s.StartTime, s.EndTime, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert special availability: %w", err)
	}
	return nil
}

// RemoveSpecial deletes the override for a date
func (r *AvailabilityRepository) RemoveSpecial(ctx context.Context, personnelID uuid.UUID, date time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM special_availability WHERE personnel_id = $1 AND special_date = $2::date`,
		personnelID, dateOnly(date))
	if err != nil {
		return false, fmt.Errorf("failed to remove special availability: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
