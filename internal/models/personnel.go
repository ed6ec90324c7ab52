package models

import (
	"time"

	"github.com/google/uuid"
)

// Personnel is a security guard who can be matched to shifts.
// Records are never deleted, only deactivated.
type Personnel struct {
	ID                  uuid.UUID   `json:"id" db:"id"`
	UserID              uuid.UUID   `json:"user_id" db:"user_id"`
	FullName            string      `json:"full_name" db:"full_name"`
	Latitude            *float64    `json:"latitude,omitempty" db:"latitude"`
	Longitude           *float64    `json:"longitude,omitempty" db:"longitude"`
	HourlyRate          float64     `json:"hourly_rate" db:"hourly_rate"`
	Skills              StringArray `json:"skills" db:"skills"`
	ShieldScore         float64     `json:"shield_score" db:"shield_score"`
	ReliabilityScore    *float64    `json:"reliability_score,omitempty" db:"reliability_score"`
	IsActive            *bool       `json:"is_active,omitempty" db:"is_active"`
	IsAvailable         bool        `json:"is_available" db:"is_available"`
	IsStandby           bool        `json:"is_standby" db:"is_standby"`
	MaxTravelDistanceKm *float64    `json:"max_travel_distance_km,omitempty" db:"max_travel_distance_km"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// Active reports whether the guard can be matched. An unknown (NULL)
// is_active flag counts as inactive.
func (p *Personnel) Active() bool {
	return p.IsActive != nil && *p.IsActive
}

// HasLocation reports whether both coordinates are known
func (p *Personnel) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Reliability returns the reliability score, 50 when unset
func (p *Personnel) Reliability() float64 {
	if p.ReliabilityScore == nil {
		return 50
	}
	return *p.ReliabilityScore
}
