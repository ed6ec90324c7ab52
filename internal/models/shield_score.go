package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoreChangeReason records why a Shield Score moved
type ScoreChangeReason string

const (
	ScoreReasonNoShow       ScoreChangeReason = "no_show"
	ScoreReasonCancellation ScoreChangeReason = "late_cancellation"
	ScoreReasonReview       ScoreChangeReason = "review"
)

// ShieldScoreHistory is one append-only entry in the score ledger
type ShieldScoreHistory struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	PersonnelID    uuid.UUID         `json:"personnel_id" db:"personnel_id"`
	ShiftID        *uuid.UUID        `json:"shift_id,omitempty" db:"shift_id"`
	Reason         ScoreChangeReason `json:"reason" db:"reason"`
	Delta          float64           `json:"delta" db:"delta"`
	ScoreBefore    float64           `json:"score_before" db:"score_before"`
	ScoreAfter     float64           `json:"score_after" db:"score_after"`
	IdempotencyKey string            `json:"idempotency_key" db:"idempotency_key"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

// ScoreChange is a requested delta against a guard's Shield Score
type ScoreChange struct {
	PersonnelID    uuid.UUID
	ShiftID        *uuid.UUID
	Reason         ScoreChangeReason
	Delta          float64
	IdempotencyKey string
}

// ScoreChangeResult reports the outcome of applying a ScoreChange.
// Applied is false when the idempotency key had already been used.
type ScoreChangeResult struct {
	Applied     bool    `json:"applied"`
	ScoreBefore float64 `json:"score_before"`
	ScoreAfter  float64 `json:"score_after"`
}

// ClampScore limits a score to [0, 100]
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ShiftReview is a venue's 1-5 rating of a completed shift
type ShiftReview struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ShiftID     uuid.UUID `json:"shift_id" db:"shift_id"`
	PersonnelID uuid.UUID `json:"personnel_id" db:"personnel_id"`
	ReviewerID  uuid.UUID `json:"reviewer_id" db:"reviewer_id"`
	Rating      int       `json:"rating" db:"rating"`
	Comment     *string   `json:"comment,omitempty" db:"comment"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ShiftCompletedEvent is handed to the payment collaborator on checkout
type ShiftCompletedEvent struct {
	ShiftID     uuid.UUID  `json:"shift_id"`
	PersonnelID uuid.UUID  `json:"personnel_id"`
	HoursWorked float64    `json:"hours_worked"`
	HourlyRate  float64    `json:"hourly_rate"`
	GrossPay    float64    `json:"gross_pay"`
	VenueID     uuid.UUID  `json:"venue_id"`
	AgencyID    *uuid.UUID `json:"agency_id,omitempty"`
	CompletedAt time.Time  `json:"completed_at"`
	Attempts    int        `json:"attempts"`
}
