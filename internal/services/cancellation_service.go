package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// CancelRequest describes a cancellation
type CancelRequest struct {
	ShiftID             uuid.UUID
	CancelledBy         models.CancelledBy
	Reason              string
	HoursNoticeOverride *float64
	Actor               models.Actor
}

// CancelResult is the outcome of a cancellation. Backfill is best-effort
// and never affects Success.
type CancelResult struct {
	TransitionResult
	HoursNotice   float64           `json:"hours_notice"`
	Penalty       float64           `json:"penalty"`
	ScoreAfter    *float64          `json:"score_after,omitempty"`
	ReopenedSlot  *uuid.UUID        `json:"reopened_shift_id,omitempty"`
	Backfill      *AutoAssignResult `json:"backfill,omitempty"`
	BackfillError string            `json:"backfill_error,omitempty"`
}

// CancellationService validates cancellations, applies notice penalties
// and triggers backfill
type CancellationService struct {
	shifts    ShiftStore
	bookings  BookingStore
	personnel PersonnelStore
	shiftSvc  *ShiftService
	planner   *AutoAssignmentService
	scores    *ShieldScoreService
	notifier  Notifier
	policy    config.Policy
	logger    *logrus.Logger
	now       func() time.Time
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(
	shifts ShiftStore,
	bookings BookingStore,
	personnel PersonnelStore,
	shiftSvc *ShiftService,
	planner *AutoAssignmentService,
	scores *ShieldScoreService,
	notifier Notifier,
	policy config.Policy,
	logger *logrus.Logger,
) *CancellationService {
	return &CancellationService{
		shifts:    shifts,
		bookings:  bookings,
		personnel: personnel,
		shiftSvc:  shiftSvc,
		planner:   planner,
		scores:    scores,
		notifier:  notifier,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// PenaltyFor returns the penalty for cancelling with hoursNotice of
// notice. Tiers are checked from the largest notice down and a tier's
// bound is inclusive.
func PenaltyFor(tiers []config.PenaltyTier, hoursNotice float64) float64 {
	for _, tier := range tiers {
		if hoursNotice >= tier.MinNoticeHours {
			return tier.Penalty
		}
	}
	if len(tiers) == 0 {
		return 0
	}
	return tiers[len(tiers)-1].Penalty
}

func fail(res *TransitionResult) *CancelResult {
	return &CancelResult{TransitionResult: *res}
}

// CancelShift cancels a shift on behalf of the venue, the guard or the agency
func (s *CancellationService) CancelShift(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if !req.CancelledBy.IsValid() {
		return fail(failed(nil, NewValidationError("cancelled_by must be venue, personnel or agency"))), nil
	}

	shift, err := s.shifts.GetByID(ctx, req.ShiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return fail(failed(nil, NewNotFoundError("shift", req.ShiftID))), nil
	}

	switch shift.Status {
	case models.ShiftStatusCheckedOut, models.ShiftStatusCancelled, models.ShiftStatusNoShow:
		return fail(failed(shift, NewInvalidStateError(shift.Status,
			fmt.Sprintf("cannot cancel a shift that is %s", shift.Status)))), nil
	}

	booking, err := s.bookings.GetByID(ctx, shift.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return fail(failed(shift, NewNotFoundError("booking", shift.BookingID))), nil
	}

	if authErr, err := s.authorize(ctx, req, shift, booking); err != nil || authErr != nil {
		if err != nil {
			return nil, err
		}
		return fail(failed(shift, authErr)), nil
	}

	now := s.now()
	hoursNotice := shift.ScheduledStart.Sub(now).Hours()
	if req.HoursNoticeOverride != nil {
		hoursNotice = *req.HoursNoticeOverride
	}

	var penalty float64
	if req.CancelledBy == models.CancelledByPersonnel {
		if !shift.ScheduledStart.After(now) || shift.Status == models.ShiftStatusCheckedIn {
			return fail(failed(shift, NewValidationError("shift has already started and can no longer be cancelled by the guard"))), nil
		}
		penalty = PenaltyFor(s.policy.CancellationTiers, hoursNotice)
	}

	res, err := s.shiftSvc.Cancel(ctx, shift, req.CancelledBy, req.Reason)
	if err != nil {
		return nil, err
	}
	result := &CancelResult{TransitionResult: *res, HoursNotice: round2(hoursNotice)}
	if !res.Success {
		return result, nil
	}

	log := s.logger.WithFields(logrus.Fields{
		"shift_id":     shift.ID,
		"cancelled_by": req.CancelledBy,
		"hours_notice": result.HoursNotice,
	})

	if penalty > 0 && shift.PersonnelID != nil {
		change, err := s.scores.Penalize(ctx, *shift.PersonnelID, shift.ID, models.ScoreReasonCancellation, penalty)
		if err != nil {
			log.WithError(err).Error("Failed to apply cancellation penalty")
		} else if change.Applied {
			result.Penalty = penalty
			after := change.ScoreAfter
			result.ScoreAfter = &after
		}
	}

	s.notifyCancellation(ctx, shift, booking, req, result.Penalty)

	if shift.ScheduledStart.After(now) {
		if req.CancelledBy != models.CancelledByVenue && shift.PersonnelID != nil {
			if slot := s.shiftSvc.reopenSlot(ctx, shift); slot != nil {
				result.ReopenedSlot = &slot.ID
			}
		}
		opts := AutoAssignOptions{}
		if req.CancelledBy == models.CancelledByPersonnel && shift.PersonnelID != nil {
			opts.ExcludedIDs = []uuid.UUID{*shift.PersonnelID}
		}
		backfill, err := s.planner.AutoAssignShifts(ctx, booking.ID, opts)
		if err != nil {
			log.WithError(err).Warn("Backfill after cancellation failed")
			result.BackfillError = err.Error()
		} else {
			result.Backfill = backfill
		}
	}

	log.Info("Shift cancelled")
	return result, nil
}

// authorize checks the actor may cancel as req.CancelledBy
func (s *CancellationService) authorize(ctx context.Context, req CancelRequest, shift *models.Shift, booking *models.Booking) (*EngineError, error) {
	if req.Actor.IsAdmin() {
		return nil, nil
	}
	switch req.CancelledBy {
	case models.CancelledByVenue:
		if booking.VenueUserID != req.Actor.UserID {
			return NewUnauthorizedError("only the booking venue can cancel as venue"), nil
		}
	case models.CancelledByAgency:
		if booking.AgencyUserID == nil || *booking.AgencyUserID != req.Actor.UserID {
			return NewUnauthorizedError("only the booking agency can cancel as agency"), nil
		}
	case models.CancelledByPersonnel:
		p, err := s.personnel.GetByUserID(ctx, req.Actor.UserID)
		if err != nil {
			return nil, err
		}
		if p == nil || !shift.IsAssignedTo(p.ID) {
			return NewUnauthorizedError("shift is not assigned to you"), nil
		}
	}
	return nil, nil
}

// notifyCancellation tells every counterparty other than the canceller
func (s *CancellationService) notifyCancellation(ctx context.Context, shift *models.Shift, booking *models.Booking, req CancelRequest, penalty float64) {
	payload := models.ShiftCancelledPayload{
		ShiftID:     shift.ID,
		CancelledBy: req.CancelledBy,
		Reason:      req.Reason,
	}
	body := fmt.Sprintf("A %s shift starting %s was cancelled by the %s", shift.Role, shift.ScheduledStart.Format(time.RFC1123), req.CancelledBy)

	if req.CancelledBy != models.CancelledByVenue {
		s.notifier.Notify(ctx, booking.VenueUserID, "Shift cancelled", body, payload)
	}
	if req.CancelledBy != models.CancelledByAgency && booking.AgencyUserID != nil {
		s.notifier.Notify(ctx, *booking.AgencyUserID, "Shift cancelled", body, payload)
	}
	if shift.PersonnelID != nil {
		guardUser := s.shiftSvc.userOf(ctx, *shift.PersonnelID)
		if guardUser == uuid.Nil {
			return
		}
		if req.CancelledBy != models.CancelledByPersonnel {
			s.notifier.Notify(ctx, guardUser, "Shift cancelled", body, payload)
		} else if penalty > 0 {
			payload.Penalty = penalty
			s.notifier.Notify(ctx, guardUser, "Late cancellation penalty",
				fmt.Sprintf("Cancelling with short notice cost %.0f Shield Score points", penalty), payload)
		}
	}
}
