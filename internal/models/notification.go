package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationKind discriminates the notification payload variants
type NotificationKind string

const (
	NotificationShiftOffered         NotificationKind = "shift_offered"
	NotificationShiftAccepted        NotificationKind = "shift_accepted"
	NotificationShiftDeclined        NotificationKind = "shift_declined"
	NotificationGuardCheckedIn       NotificationKind = "guard_checked_in"
	NotificationShiftCompleted       NotificationKind = "shift_completed"
	NotificationReviewRequest        NotificationKind = "review_request"
	NotificationShiftCancelled       NotificationKind = "shift_cancelled"
	NotificationNoShow               NotificationKind = "no_show"
	NotificationScorePenalty         NotificationKind = "score_penalty"
	NotificationWelfareCheck         NotificationKind = "welfare_check"
	NotificationLateWarning          NotificationKind = "late_warning"
	NotificationUrgentOffer          NotificationKind = "urgent_offer"
	NotificationNoReplacement        NotificationKind = "no_replacement"
	NotificationReplacementConfirmed NotificationKind = "replacement_confirmed"
	NotificationGuardReplaced        NotificationKind = "guard_replaced"
)

// NotificationPayload is implemented by every typed payload variant
type NotificationPayload interface {
	Kind() NotificationKind
}

// ShiftOfferedPayload is sent when the planner offers a pending shift
type ShiftOfferedPayload struct {
	ShiftID        uuid.UUID `json:"shift_id"`
	BookingID      uuid.UUID `json:"booking_id"`
	Role           string    `json:"role"`
	HourlyRate     float64   `json:"hourly_rate"`
	ScheduledStart time.Time `json:"scheduled_start"`
	MatchScore     float64   `json:"match_score"`
}

func (ShiftOfferedPayload) Kind() NotificationKind { return NotificationShiftOffered }

// ShiftStatusPayload carries a plain status change to a counterparty
type ShiftStatusPayload struct {
	ShiftID     uuid.UUID   `json:"shift_id"`
	BookingID   uuid.UUID   `json:"booking_id"`
	PersonnelID *uuid.UUID  `json:"personnel_id,omitempty"`
	Status      ShiftStatus `json:"status"`
	kind        NotificationKind
}

// NewShiftStatusPayload builds a status payload for one of the plain
// status kinds (accepted, declined, checked in).
func NewShiftStatusPayload(kind NotificationKind, shift *Shift) ShiftStatusPayload {
	return ShiftStatusPayload{
		ShiftID:     shift.ID,
		BookingID:   shift.BookingID,
		PersonnelID: shift.PersonnelID,
		Status:      shift.Status,
		kind:        kind,
	}
}

func (p ShiftStatusPayload) Kind() NotificationKind { return p.kind }

// ShiftCompletedPayload is sent to the venue after checkout
type ShiftCompletedPayload struct {
	ShiftID     uuid.UUID `json:"shift_id"`
	PersonnelID uuid.UUID `json:"personnel_id"`
	HoursWorked float64   `json:"hours_worked"`
	TotalPay    float64   `json:"total_pay"`
}

func (ShiftCompletedPayload) Kind() NotificationKind { return NotificationShiftCompleted }

// ReviewRequestPayload asks the venue to rate a completed shift
type ReviewRequestPayload struct {
	ShiftID     uuid.UUID `json:"shift_id"`
	PersonnelID uuid.UUID `json:"personnel_id"`
}

func (ReviewRequestPayload) Kind() NotificationKind { return NotificationReviewRequest }

// ShiftCancelledPayload is sent to the counterparties of a cancellation
type ShiftCancelledPayload struct {
	ShiftID     uuid.UUID   `json:"shift_id"`
	CancelledBy CancelledBy `json:"cancelled_by"`
	Reason      string      `json:"reason,omitempty"`
	Penalty     float64     `json:"penalty,omitempty"`
}

func (ShiftCancelledPayload) Kind() NotificationKind { return NotificationShiftCancelled }

// NoShowPayload is sent to both parties when a guard is marked no-show
type NoShowPayload struct {
	ShiftID     uuid.UUID `json:"shift_id"`
	PersonnelID uuid.UUID `json:"personnel_id"`
	Notes       string    `json:"notes,omitempty"`
}

func (NoShowPayload) Kind() NotificationKind { return NotificationNoShow }

// ScorePenaltyPayload tells a guard their Shield Score dropped
type ScorePenaltyPayload struct {
	ShiftID    uuid.UUID         `json:"shift_id"`
	Reason     ScoreChangeReason `json:"reason"`
	Delta      float64           `json:"delta"`
	ScoreAfter float64           `json:"score_after"`
}

func (ScorePenaltyPayload) Kind() NotificationKind { return NotificationScorePenalty }

// WelfareCheckPayload is the non-punitive reminder before a guard is late
type WelfareCheckPayload struct {
	ShiftID        uuid.UUID `json:"shift_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
	MinutesLate    float64   `json:"minutes_late"`
}

func (WelfareCheckPayload) Kind() NotificationKind { return NotificationWelfareCheck }

// LateWarningPayload tells a guard they have been marked late
type LateWarningPayload struct {
	ShiftID     uuid.UUID `json:"shift_id"`
	MinutesLate float64   `json:"minutes_late"`
}

func (LateWarningPayload) Kind() NotificationKind { return NotificationLateWarning }

// UrgentOfferPayload is broadcast to standby candidates
type UrgentOfferPayload struct {
	ShiftID        uuid.UUID `json:"shift_id"`
	Role           string    `json:"role"`
	SurgeRate      float64   `json:"surge_rate"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	DistanceKm     *float64  `json:"distance_km,omitempty"`
}

func (UrgentOfferPayload) Kind() NotificationKind { return NotificationUrgentOffer }

// NoReplacementPayload tells the venue the urgent search came up empty
type NoReplacementPayload struct {
	ShiftID uuid.UUID `json:"shift_id"`
}

func (NoReplacementPayload) Kind() NotificationKind { return NotificationNoReplacement }

// ReplacementPayload confirms a replacement to the new guard or the venue
type ReplacementPayload struct {
	ShiftID             uuid.UUID  `json:"shift_id"`
	NewPersonnelID      uuid.UUID  `json:"new_personnel_id"`
	OriginalPersonnelID *uuid.UUID `json:"original_personnel_id,omitempty"`
	SurgeRate           *float64   `json:"surge_rate,omitempty"`
	kind                NotificationKind
}

// NewReplacementPayload builds a confirmation (new guard) or swap (venue) payload
func NewReplacementPayload(kind NotificationKind, shift *Shift, newGuard uuid.UUID, original *uuid.UUID) ReplacementPayload {
	return ReplacementPayload{
		ShiftID:             shift.ID,
		NewPersonnelID:      newGuard,
		OriginalPersonnelID: original,
		SurgeRate:           shift.SurgeRate,
		kind:                kind,
	}
}

func (p ReplacementPayload) Kind() NotificationKind { return p.kind }

// Notification is an append-only record of a message sent to a user
type Notification struct {
	ID        uuid.UUID            `json:"id" db:"id"`
	UserID    uuid.UUID            `json:"user_id" db:"user_id"`
	Kind      NotificationKind     `json:"kind" db:"kind"`
	Title     string               `json:"title" db:"title"`
	Body      string               `json:"body" db:"body"`
	Payload   NotificationEnvelope `json:"payload" db:"payload"`
	CreatedAt time.Time            `json:"created_at" db:"created_at"`
}

// NotificationEnvelope stores a typed payload as JSONB
type NotificationEnvelope struct {
	Payload NotificationPayload
}

type envelopeWire struct {
	Kind NotificationKind `json:"kind"`
	Data json.RawMessage  `json:"data"`
}

// MarshalJSON writes {"kind": ..., "data": {...}}
func (e NotificationEnvelope) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeWire{Kind: e.Payload.Kind(), Data: data})
}

// UnmarshalJSON decodes the payload variant named by kind
func (e *NotificationEnvelope) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		e.Payload = nil
		return nil
	}
	var wire envelopeWire
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	payload, err := DecodeNotificationPayload(wire.Kind, wire.Data)
	if err != nil {
		return err
	}
	e.Payload = payload
	return nil
}

// Value implements driver.Valuer for JSONB storage
func (e NotificationEnvelope) Value() (driver.Value, error) {
	return e.MarshalJSON()
}

// Scan implements sql.Scanner for JSONB retrieval
func (e *NotificationEnvelope) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed for NotificationEnvelope")
	}
	return e.UnmarshalJSON(bytes)
}

// DecodeNotificationPayload unmarshals data into the variant for kind
func DecodeNotificationPayload(kind NotificationKind, data []byte) (NotificationPayload, error) {
	var (
		payload NotificationPayload
		err     error
	)
	switch kind {
	case NotificationShiftOffered:
		var p ShiftOfferedPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationShiftAccepted, NotificationShiftDeclined, NotificationGuardCheckedIn:
		var p ShiftStatusPayload
		err = json.Unmarshal(data, &p)
		p.kind = kind
		payload = p
	case NotificationShiftCompleted:
		var p ShiftCompletedPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationReviewRequest:
		var p ReviewRequestPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationShiftCancelled:
		var p ShiftCancelledPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationNoShow:
		var p NoShowPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationScorePenalty:
		var p ScorePenaltyPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationWelfareCheck:
		var p WelfareCheckPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationLateWarning:
		var p LateWarningPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationUrgentOffer:
		var p UrgentOfferPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationNoReplacement:
		var p NoReplacementPayload
		err = json.Unmarshal(data, &p)
		payload = p
	case NotificationReplacementConfirmed, NotificationGuardReplaced:
		var p ReplacementPayload
		err = json.Unmarshal(data, &p)
		p.kind = kind
		payload = p
	default:
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}
	return payload, nil
}

// PushMessage is the unit queued for delivery to the push gateway
type PushMessage struct {
	NotificationID uuid.UUID         `json:"notification_id"`
	UserID         uuid.UUID         `json:"user_id"`
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Data           map[string]string `json:"data,omitempty"`
	Attempts       int               `json:"attempts"`
}
