package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/internal/services"
)

// The handlers depend on these narrow views of the services so they can
// be exercised with stubs.

type BookingManager interface {
	PostBooking(ctx context.Context, actor models.Actor, req models.PostBookingRequest) (*models.BookingWithShifts, error)
	GetBooking(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.BookingWithShifts, error)
}

type AutoAssigner interface {
	AutoAssignShifts(ctx context.Context, bookingID uuid.UUID, opts services.AutoAssignOptions) (*services.AutoAssignResult, error)
}

type ShiftLifecycle interface {
	AcceptShift(ctx context.Context, shiftID, personnelID uuid.UUID) (*services.TransitionResult, error)
	DeclineShift(ctx context.Context, shiftID, personnelID uuid.UUID) (*services.TransitionResult, error)
	CheckIn(ctx context.Context, shiftID, personnelID uuid.UUID, loc services.Location) (*services.TransitionResult, error)
	CheckOut(ctx context.Context, shiftID, personnelID uuid.UUID, loc services.Location) (*services.TransitionResult, error)
	MarkNoShow(ctx context.Context, shiftID uuid.UUID, actor models.Actor, notes string) (*services.TransitionResult, error)
}

type ShiftCanceller interface {
	CancelShift(ctx context.Context, req services.CancelRequest) (*services.CancelResult, error)
}

type ShiftReviewer interface {
	SubmitReview(ctx context.Context, shiftID uuid.UUID, actor models.Actor, rating int, comment *string) (*services.ReviewResult, error)
}

type Dispatcher interface {
	CheckGuardStatus(ctx context.Context, shiftID uuid.UUID, actor models.Actor) (*services.GuardStatusResult, error)
	FindReplacement(ctx context.Context, shiftID uuid.UUID, actor models.Actor) (*services.ReplacementSearchResult, error)
	AssignReplacement(ctx context.Context, shiftID, personnelID uuid.UUID) (*services.TransitionResult, error)
}

type AvailabilityManager interface {
	Resolve(ctx context.Context, personnelID uuid.UUID, date time.Time, start, end models.TimeOfDay) (*models.AvailabilityResult, error)
	Get(ctx context.Context, personnelID uuid.UUID, from time.Time) (*models.PersonnelAvailability, error)
	SetWeekly(ctx context.Context, personnelID uuid.UUID, req models.UpsertWeeklyRequest) (*models.WeeklyAvailability, error)
	BlockDate(ctx context.Context, personnelID uuid.UUID, req models.BlockDateRequest) (*models.BlockedDate, error)
	UnblockDate(ctx context.Context, personnelID uuid.UUID, date string) error
	SetSpecial(ctx context.Context, personnelID uuid.UUID, req models.UpsertSpecialRequest) (*models.SpecialAvailability, error)
	RemoveSpecial(ctx context.Context, personnelID uuid.UUID, date string) error
	UpcomingWindows(ctx context.Context, personnelID uuid.UUID, from time.Time, days int) ([]services.UpcomingWindow, error)
}

type PersonnelLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Personnel, error)
}

type SweepRunner interface {
	RunSweepNow(ctx context.Context) (*services.SweepResult, error)
	GetJobStatus() map[string]interface{}
}
