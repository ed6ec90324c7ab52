package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a wall-clock time stored as "HH:MM"
type TimeOfDay string

// ParseTimeOfDay validates and normalises an "HH:MM" or "HH:MM:SS" string
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay(fmt.Sprintf("%02d:%02d", h, m)), nil
}

// Minutes returns minutes since midnight, or -1 when malformed
func (t TimeOfDay) Minutes() int {
	norm, err := ParseTimeOfDay(string(t))
	if err != nil {
		return -1
	}
	h, _ := strconv.Atoi(string(norm[:2]))
	m, _ := strconv.Atoi(string(norm[3:]))
	return h*60 + m
}

// TimeOfDayFrom returns the wall-clock component of t in its own location
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay(fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute()))
}

// TimeWindow is a same-day or overnight wall-clock interval
type TimeWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// IsOvernight reports whether the window wraps past midnight
func (w TimeWindow) IsOvernight() bool {
	return w.Start.Minutes() > w.End.Minutes()
}

// Contains reports whether [start, end] lies within the window.
// Overnight windows accept a request that begins after Start or
// finishes before End. A same-day window never contains a request that
// ends at or before its start, since that request runs past midnight.
func (w TimeWindow) Contains(start, end TimeOfDay) bool {
	ws, we := w.Start.Minutes(), w.End.Minutes()
	rs, re := start.Minutes(), end.Minutes()
	if ws < 0 || we < 0 || rs < 0 || re < 0 {
		return false
	}
	if ws > we {
		return rs >= ws || re <= we
	}
	return rs < re && rs >= ws && re <= we
}

// WeeklyAvailability is a recurring window for one day of the week
type WeeklyAvailability struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	PersonnelID uuid.UUID  `json:"personnel_id" db:"personnel_id"`
	DayOfWeek   int        `json:"day_of_week" db:"day_of_week"` // 0 = Sunday
	StartTime   *TimeOfDay `json:"start_time,omitempty" db:"start_time"`
	EndTime     *TimeOfDay `json:"end_time,omitempty" db:"end_time"`
	IsAvailable bool       `json:"is_available" db:"is_available"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Window returns the configured window, nil when the whole day is open
func (w *WeeklyAvailability) Window() *TimeWindow {
	if w.StartTime == nil || w.EndTime == nil {
		return nil
	}
	return &TimeWindow{Start: *w.StartTime, End: *w.EndTime}
}

// BlockedDate is a hard exclusion for one calendar date
type BlockedDate struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PersonnelID uuid.UUID `json:"personnel_id" db:"personnel_id"`
	Date        time.Time `json:"date" db:"blocked_date"`
	Reason      *string   `json:"reason,omitempty" db:"reason"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// SpecialAvailability overrides the weekly pattern for one date
type SpecialAvailability struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PersonnelID uuid.UUID `json:"personnel_id" db:"personnel_id"`
	Date        time.Time `json:"date" db:"special_date"`
	StartTime   TimeOfDay `json:"start_time" db:"start_time"`
	EndTime     TimeOfDay `json:"end_time" db:"end_time"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Window returns the override window
func (s *SpecialAvailability) Window() TimeWindow {
	return TimeWindow{Start: s.StartTime, End: s.EndTime}
}

// AvailabilityReason explains a negative availability result
type AvailabilityReason string

const (
	AvailabilityReasonBlocked       AvailabilityReason = "blocked"
	AvailabilityReasonConflict      AvailabilityReason = "conflict"
	AvailabilityReasonOutsideWindow AvailabilityReason = "outside_special_window"
	AvailabilityReasonDayOff        AvailabilityReason = "day_unavailable"
	AvailabilityReasonOutsideWeekly AvailabilityReason = "outside_weekly_window"
	AvailabilityReasonNoRecord      AvailabilityReason = "no_availability"
)

// IsHardBlock reports whether the reason excludes a candidate from planning.
// Missing or non-matching availability records are soft signals.
func (r AvailabilityReason) IsHardBlock() bool {
	return r == AvailabilityReasonBlocked || r == AvailabilityReasonConflict
}

// AvailabilityResult is the answer to "is this person free for this window?"
type AvailabilityResult struct {
	Available           bool               `json:"available"`
	Reason              AvailabilityReason `json:"reason,omitempty"`
	Window              *TimeWindow        `json:"window,omitempty"`
	DayName             string             `json:"day_name,omitempty"`
	ConflictingShiftIDs []uuid.UUID        `json:"conflicting_shift_ids,omitempty"`
}

// PersonnelAvailability is the full availability configuration of a guard
type PersonnelAvailability struct {
	Weekly  []*WeeklyAvailability  `json:"weekly"`
	Blocked []*BlockedDate         `json:"blocked"`
	Special []*SpecialAvailability `json:"special"`
}

// UpsertWeeklyRequest is the body of PUT /availability/weekly
type UpsertWeeklyRequest struct {
	DayOfWeek   *int    `json:"day_of_week" binding:"required" validate:"required,min=0,max=6"`
	StartTime   *string `json:"start_time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
	IsAvailable bool    `json:"is_available"`
}

// BlockDateRequest is the body of POST /availability/blocked
type BlockDateRequest struct {
	Date   string  `json:"date" binding:"required" validate:"required,datetime=2006-01-02"`
	Reason *string `json:"reason,omitempty"`
}

// UpsertSpecialRequest is the body of PUT /availability/special
type UpsertSpecialRequest struct {
	Date      string `json:"date" binding:"required" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}
