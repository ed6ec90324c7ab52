package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the aggregate status of a booking, derived from its shifts
type BookingStatus string

const (
	BookingStatusOpen            BookingStatus = "open"             // No shift has personnel yet
	BookingStatusPartiallyFilled BookingStatus = "partially_filled" // Some shifts offered or accepted
	BookingStatusConfirmed       BookingStatus = "confirmed"        // Every live shift accepted
	BookingStatusInProgress      BookingStatus = "in_progress"      // At least one guard on site
	BookingStatusCompleted       BookingStatus = "completed"
	BookingStatusCancelled       BookingStatus = "cancelled"
)

// StaffRequirements maps a role to the number of guards needed
type StaffRequirements map[string]int

// Value implements driver.Valuer for JSONB storage
func (s StaffRequirements) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB retrieval
func (s *StaffRequirements) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for StaffRequirements")
	}
	return json.Unmarshal(bytes, s)
}

// Headcount returns the total number of guards required
func (s StaffRequirements) Headcount() int {
	total := 0
	for _, qty := range s {
		total += qty
	}
	return total
}

// HourlyRates maps a role to its hourly rate
type HourlyRates map[string]float64

// Value implements driver.Valuer for JSONB storage
func (h HourlyRates) Value() (driver.Value, error) {
	return json.Marshal(h)
}

// Scan implements sql.Scanner for JSONB retrieval
func (h *HourlyRates) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for HourlyRates")
	}
	return json.Unmarshal(bytes, h)
}

// Booking is a venue's request for guards over an event window
type Booking struct {
	ID                uuid.UUID         `json:"id" db:"id"`
	VenueID           uuid.UUID         `json:"venue_id" db:"venue_id"`
	VenueUserID       uuid.UUID         `json:"venue_user_id" db:"venue_user_id"`
	AgencyID          *uuid.UUID        `json:"agency_id,omitempty" db:"agency_id"`
	AgencyUserID      *uuid.UUID        `json:"agency_user_id,omitempty" db:"agency_user_id"`
	VenueName         string            `json:"venue_name" db:"venue_name"`
	VenueLatitude     *float64          `json:"venue_latitude,omitempty" db:"venue_latitude"`
	VenueLongitude    *float64          `json:"venue_longitude,omitempty" db:"venue_longitude"`
	EventStart        time.Time         `json:"event_start" db:"event_start"`
	EventEnd          time.Time         `json:"event_end" db:"event_end"`
	StaffRequirements StaffRequirements `json:"staff_requirements" db:"staff_requirements"`
	HourlyRates       HourlyRates       `json:"hourly_rates" db:"hourly_rates"`
	Notes             *string           `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at" db:"updated_at"`
}

// HasVenueLocation reports whether the venue coordinates are known
func (b *Booking) HasVenueLocation() bool {
	return b.VenueLatitude != nil && b.VenueLongitude != nil
}

// OperableBy reports whether actor may act on the booking. Admins may
// act on any booking.
func (b *Booking) OperableBy(actor Actor) bool {
	if actor.IsAdmin() || b.VenueUserID == actor.UserID {
		return true
	}
	return b.AgencyUserID != nil && *b.AgencyUserID == actor.UserID
}

// BookingWithShifts is the read model returned by the booking endpoint
type BookingWithShifts struct {
	Booking
	Status BookingStatus `json:"status"`
	Shifts []*Shift      `json:"shifts"`
}

// PostBookingRequest is the body of POST /bookings
type PostBookingRequest struct {
	VenueID           uuid.UUID         `json:"venue_id" binding:"required"`
	AgencyID          *uuid.UUID        `json:"agency_id,omitempty"`
	AgencyUserID      *uuid.UUID        `json:"agency_user_id,omitempty"`
	VenueName         string            `json:"venue_name" binding:"required" validate:"required,max=200"`
	VenueLatitude     *float64          `json:"venue_latitude,omitempty" validate:"omitempty,latitude"`
	VenueLongitude    *float64          `json:"venue_longitude,omitempty" validate:"omitempty,longitude"`
	EventStart        time.Time         `json:"event_start" binding:"required"`
	EventEnd          time.Time         `json:"event_end" binding:"required" validate:"gtfield=EventStart"`
	StaffRequirements StaffRequirements `json:"staff_requirements" binding:"required" validate:"required,min=1,dive,keys,required,endkeys,min=1,max=100"`
	HourlyRates       HourlyRates       `json:"hourly_rates" binding:"required" validate:"required,dive,keys,required,endkeys,gt=0"`
	Notes             *string           `json:"notes,omitempty"`
}
