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

const bookingColumns = `
	id, venue_id, venue_user_id, agency_id, agency_user_id, venue_name,
	venue_latitude, venue_longitude, event_start, event_end,
	staff_requirements, hourly_rates, notes, created_at, updated_at`

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// GetByID returns a booking, or nil when it does not exist
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %s: %w", id, err)
	}
	return &booking, nil
}

// CreateWithShifts inserts a booking and all of its shifts in one transaction
func (r *BookingRepository) CreateWithShifts(ctx context.Context, booking *models.Booking, shifts []*models.Shift) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bookings (
			id, venue_id, venue_user_id, agency_id, agency_user_id, venue_name,
			venue_latitude, venue_longitude, event_start, event_end,
			staff_requirements, hourly_rates, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = tx.ExecContext(ctx, query,
		booking.ID, booking.VenueID, booking.VenueUserID, booking.AgencyID, booking.AgencyUserID, booking.VenueName,
		booking.VenueLatitude, booking.VenueLongitude, booking.EventStart, booking.EventEnd,
		booking.StaffRequirements, booking.HourlyRates, booking.Notes, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	for _, shift := range shifts {
		shift.BookingID = booking.ID
		if err := insertShift(ctx, tx, shift); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}
