package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
)

// ShiftStore is the persistence the engine needs for shifts.
// Implemented by database.ShiftRepository.
type ShiftStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shift, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.Shift, error)
	ListUnfilledByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.Shift, error)
	ListOverlapping(ctx context.Context, personnelID uuid.UUID, start, end time.Time) ([]*models.Shift, error)
	ListBusyPersonnel(ctx context.Context, personnelIDs []uuid.UUID, at time.Time) ([]uuid.UUID, error)
	ListAccepted(ctx context.Context, startsBefore time.Time, limit int) ([]*models.Shift, error)
	Create(ctx context.Context, shift *models.Shift) error
	CompareAndSwap(ctx context.Context, id uuid.UUID, pred models.ShiftPredicate, upd models.ShiftUpdate) (*models.Shift, bool, error)
}

// BookingStore is implemented by database.BookingRepository
type BookingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	CreateWithShifts(ctx context.Context, booking *models.Booking, shifts []*models.Shift) error
}

// PersonnelStore is implemented by database.PersonnelRepository
type PersonnelStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Personnel, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Personnel, error)
	ListActive(ctx context.Context, excluded []uuid.UUID) ([]*models.Personnel, error)
	ListStandby(ctx context.Context, exclude *uuid.UUID, limit int) ([]*models.Personnel, error)
}

// AvailabilityStore is implemented by database.AvailabilityRepository
type AvailabilityStore interface {
	GetWeekly(ctx context.Context, personnelID uuid.UUID, dayOfWeek int) (*models.WeeklyAvailability, error)
	ListWeekly(ctx context.Context, personnelID uuid.UUID) ([]*models.WeeklyAvailability, error)
	UpsertWeekly(ctx context.Context, w *models.WeeklyAvailability) error
	GetBlocked(ctx context.Context, personnelID uuid.UUID, date time.Time) (*models.BlockedDate, error)
	ListBlocked(ctx context.Context, personnelID uuid.UUID, from, to time.Time) ([]*models.BlockedDate, error)
	AddBlocked(ctx context.Context, b *models.BlockedDate) error
	RemoveBlocked(ctx context.Context, personnelID uuid.UUID, date time.Time) (bool, error)
	GetSpecial(ctx context.Context, personnelID uuid.UUID, date time.Time) (*models.SpecialAvailability, error)
	ListSpecial(ctx context.Context, personnelID uuid.UUID, from, to time.Time) ([]*models.SpecialAvailability, error)
	UpsertSpecial(ctx context.Context, s *models.SpecialAvailability) error
	RemoveSpecial(ctx context.Context, personnelID uuid.UUID, date time.Time) (bool, error)
}

// ScoreLedger is implemented by database.ShieldScoreRepository
type ScoreLedger interface {
	ApplyScoreChange(ctx context.Context, change models.ScoreChange) (*models.ScoreChangeResult, error)
	ListHistory(ctx context.Context, personnelID uuid.UUID, limit int) ([]*models.ShieldScoreHistory, error)
}

// NotificationStore is implemented by database.NotificationRepository
type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// ReviewStore is implemented by database.ReviewRepository
type ReviewStore interface {
	Create(ctx context.Context, review *models.ShiftReview) error
}

// JobQueue is implemented by queue.RedisQueue
type JobQueue interface {
	Enqueue(ctx context.Context, queueName string, payload interface{}) error
}

// OfferRegistry remembers which guards an urgent shift was offered to,
// and which late guards have already had a welfare check.
// Implemented by queue.RedisQueue.
type OfferRegistry interface {
	RecordOffer(ctx context.Context, shiftID uuid.UUID, personnelIDs []uuid.UUID, ttl time.Duration) error
	WasOffered(ctx context.Context, shiftID, personnelID uuid.UUID) (known bool, offered bool, err error)
	ClearOffer(ctx context.Context, shiftID uuid.UUID) error
	MarkWelfareSent(ctx context.Context, shiftID uuid.UUID, ttl time.Duration) (first bool, err error)
}
