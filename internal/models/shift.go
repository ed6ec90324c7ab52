package models

import (
	"time"

	"github.com/google/uuid"
)

// ShiftStatus represents the lifecycle status of a shift
type ShiftStatus string

const (
	ShiftStatusPending    ShiftStatus = "pending"     // Posted or offered, not yet accepted
	ShiftStatusAccepted   ShiftStatus = "accepted"    // Guard confirmed they will work it
	ShiftStatusDeclined   ShiftStatus = "declined"    // Guard turned the offer down
	ShiftStatusCheckedIn  ShiftStatus = "checked_in"  // Guard on site
	ShiftStatusCheckedOut ShiftStatus = "checked_out" // Shift worked and closed
	ShiftStatusNoShow     ShiftStatus = "no_show"     // Guard never arrived
	ShiftStatusCancelled  ShiftStatus = "cancelled"
)

// shiftTransitions is the complete table of allowed status moves.
// Terminal statuses have no entry.
var shiftTransitions = map[ShiftStatus][]ShiftStatus{
	ShiftStatusPending:   {ShiftStatusAccepted, ShiftStatusDeclined, ShiftStatusCancelled},
	ShiftStatusAccepted:  {ShiftStatusCheckedIn, ShiftStatusNoShow, ShiftStatusCancelled},
	ShiftStatusCheckedIn: {ShiftStatusCheckedOut, ShiftStatusCancelled},
}

// AllShiftStatuses lists every status in lifecycle order
var AllShiftStatuses = []ShiftStatus{
	ShiftStatusPending,
	ShiftStatusAccepted,
	ShiftStatusDeclined,
	ShiftStatusCheckedIn,
	ShiftStatusCheckedOut,
	ShiftStatusNoShow,
	ShiftStatusCancelled,
}

// AllowedTransitions returns the statuses reachable from s in one step
func (s ShiftStatus) AllowedTransitions() []ShiftStatus {
	allowed := shiftTransitions[s]
	out := make([]ShiftStatus, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransitionTo reports whether s -> to is in the transition table
func (s ShiftStatus) CanTransitionTo(to ShiftStatus) bool {
	for _, allowed := range shiftTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s ShiftStatus) IsTerminal() bool {
	switch s {
	case ShiftStatusDeclined, ShiftStatusCheckedOut, ShiftStatusNoShow, ShiftStatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether s is a known status
func (s ShiftStatus) IsValid() bool {
	for _, known := range AllShiftStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// DispatcherStatus tracks no-show recovery, orthogonal to ShiftStatus
type DispatcherStatus string

const (
	DispatcherStatusNone             DispatcherStatus = "none"
	DispatcherStatusAtRisk           DispatcherStatus = "at_risk"
	DispatcherStatusSearching        DispatcherStatus = "searching"
	DispatcherStatusReplacementFound DispatcherStatus = "replacement_found"
	DispatcherStatusFailed           DispatcherStatus = "failed"
)

// IsOpen reports whether a replacement can still be committed
func (d DispatcherStatus) IsOpen() bool {
	return d == DispatcherStatusAtRisk || d == DispatcherStatusSearching
}

// CancelledBy identifies who cancelled a shift
type CancelledBy string

const (
	CancelledByVenue     CancelledBy = "venue"
	CancelledByPersonnel CancelledBy = "personnel"
	CancelledByAgency    CancelledBy = "agency"
)

// IsValid reports whether c is a known canceller
func (c CancelledBy) IsValid() bool {
	return c == CancelledByVenue || c == CancelledByPersonnel || c == CancelledByAgency
}

// Shift is one guard slot on a booking
type Shift struct {
	ID                  uuid.UUID        `json:"id" db:"id"`
	BookingID           uuid.UUID        `json:"booking_id" db:"booking_id"`
	PersonnelID         *uuid.UUID       `json:"personnel_id,omitempty" db:"personnel_id"`
	OriginalPersonnelID *uuid.UUID       `json:"original_personnel_id,omitempty" db:"original_personnel_id"`
	Role                string           `json:"role" db:"role"`
	HourlyRate          float64          `json:"hourly_rate" db:"hourly_rate"`
	ScheduledStart      time.Time        `json:"scheduled_start" db:"scheduled_start"`
	ScheduledEnd        time.Time        `json:"scheduled_end" db:"scheduled_end"`
	Status              ShiftStatus      `json:"status" db:"status"`
	DispatcherStatus    DispatcherStatus `json:"dispatcher_status" db:"dispatcher_status"`
	IsUrgent            bool             `json:"is_urgent" db:"is_urgent"`
	SurgeRate           *float64         `json:"surge_rate,omitempty" db:"surge_rate"`

	AcceptedAt      *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	ActualStart     *time.Time `json:"actual_start,omitempty" db:"actual_start"`
	ActualEnd       *time.Time `json:"actual_end,omitempty" db:"actual_end"`
	CheckInLat      *float64   `json:"check_in_lat,omitempty" db:"check_in_lat"`
	CheckInLng      *float64   `json:"check_in_lng,omitempty" db:"check_in_lng"`
	CheckOutLat     *float64   `json:"check_out_lat,omitempty" db:"check_out_lat"`
	CheckOutLng     *float64   `json:"check_out_lng,omitempty" db:"check_out_lng"`
	HoursWorked     *float64   `json:"hours_worked,omitempty" db:"hours_worked"`
	TotalPay        *float64   `json:"total_pay,omitempty" db:"total_pay"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancelReason    *string    `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancelledByRole *string    `json:"cancelled_by,omitempty" db:"cancelled_by"`
	NoShowAt        *time.Time `json:"no_show_at,omitempty" db:"no_show_at"`
	NoShowNotes     *string    `json:"no_show_notes,omitempty" db:"no_show_notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsAssignedTo reports whether personnelID currently holds the shift
func (s *Shift) IsAssignedTo(personnelID uuid.UUID) bool {
	return s.PersonnelID != nil && *s.PersonnelID == personnelID
}

// IsUnfilled reports whether the shift is an open pending slot
func (s *Shift) IsUnfilled() bool {
	return s.PersonnelID == nil && s.Status == ShiftStatusPending
}

// Duration returns the scheduled length of the shift
func (s *Shift) Duration() time.Duration {
	return s.ScheduledEnd.Sub(s.ScheduledStart)
}

// Overlaps applies the half-open interval test against [start, end)
func (s *Shift) Overlaps(start, end time.Time) bool {
	return start.Before(s.ScheduledEnd) && end.After(s.ScheduledStart)
}

// ShiftPredicate is the WHERE side of a conditional shift write.
// Empty fields are not constrained.
type ShiftPredicate struct {
	Statuses           []ShiftStatus
	DispatcherStatuses []DispatcherStatus
	PersonnelID        *uuid.UUID // shift must currently be held by this personnel
	RequireUnassigned  bool       // shift must currently have no personnel
}

// ShiftUpdate is the SET side of a conditional shift write.
// Nil fields are left untouched. Setting PersonnelID requires Status to
// be set as well.
type ShiftUpdate struct {
	Status              *ShiftStatus
	DispatcherStatus    *DispatcherStatus
	PersonnelID         *uuid.UUID
	OriginalPersonnelID *uuid.UUID
	IsUrgent            *bool
	SurgeRate           *float64

	AcceptedAt      *time.Time
	ActualStart     *time.Time
	ActualEnd       *time.Time
	CheckInLat      *float64
	CheckInLng      *float64
	CheckOutLat     *float64
	CheckOutLng     *float64
	HoursWorked     *float64
	TotalPay        *float64
	CancelledAt     *time.Time
	CancelReason    *string
	CancelledByRole *string
	NoShowAt        *time.Time
	NoShowNotes     *string
}

// TouchesPersonnel reports whether the update changes who holds the shift
func (u ShiftUpdate) TouchesPersonnel() bool {
	return u.PersonnelID != nil
}
