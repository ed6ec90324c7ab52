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

// ShiftService is the shift state machine. It is the only code that
// writes shift status, and every write is a compare-and-swap on the
// status the caller observed.
type ShiftService struct {
	shifts    ShiftStore
	bookings  BookingStore
	personnel PersonnelStore
	scores    *ShieldScoreService
	notifier  Notifier
	payments  PaymentSink
	policy    config.Policy
	logger    *logrus.Logger
	now       func() time.Time
}

// NewShiftService creates a new ShiftService
func NewShiftService(
	shifts ShiftStore,
	bookings BookingStore,
	personnel PersonnelStore,
	scores *ShieldScoreService,
	notifier Notifier,
	payments PaymentSink,
	policy config.Policy,
	logger *logrus.Logger,
) *ShiftService {
	return &ShiftService{
		shifts:    shifts,
		bookings:  bookings,
		personnel: personnel,
		scores:    scores,
		notifier:  notifier,
		payments:  payments,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// Location is an optional coordinate pair supplied at check-in/out
type Location struct {
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// transition runs one state-machine move: validate against the table,
// CAS on the observed status, then report. Side effects are the caller's.
func (s *ShiftService) transition(ctx context.Context, shift *models.Shift, to models.ShiftStatus, pred models.ShiftPredicate, upd models.ShiftUpdate) (*TransitionResult, error) {
	if !shift.Status.CanTransitionTo(to) {
		return failed(shift, NewInvalidTransitionError(shift.Status, to)), nil
	}

	pred.Statuses = []models.ShiftStatus{shift.Status}
	upd.Status = &to

	updated, ok, err := s.shifts.CompareAndSwap(ctx, shift.ID, pred, upd)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race: report against the state that won.
		current, err := s.shifts.GetByID(ctx, shift.ID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return failed(nil, NewNotFoundError("shift", shift.ID)), nil
		}
		if current.Status == shift.Status {
			// Same status, so a guard predicate moved under us
			return failed(current, NewAlreadyFilledError(shift.ID)), nil
		}
		return failed(current, NewInvalidTransitionError(current.Status, to)), nil
	}

	s.logger.WithFields(logrus.Fields{
		"shift_id": shift.ID,
		"from":     shift.Status,
		"to":       to,
	}).Info("Shift transition")

	return succeeded(updated), nil
}

// loadShift fetches a shift, mapping absence to a NotFound result
func (s *ShiftService) loadShift(ctx context.Context, shiftID uuid.UUID) (*models.Shift, *TransitionResult, error) {
	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, nil, err
	}
	if shift == nil {
		return nil, failed(nil, NewNotFoundError("shift", shiftID)), nil
	}
	return shift, nil, nil
}

// loadOwnShift fetches a shift that must be held by personnelID
func (s *ShiftService) loadOwnShift(ctx context.Context, shiftID, personnelID uuid.UUID) (*models.Shift, *TransitionResult, error) {
	shift, res, err := s.loadShift(ctx, shiftID)
	if shift == nil {
		return nil, res, err
	}
	if !shift.IsAssignedTo(personnelID) {
		return nil, failed(shift, NewUnauthorizedError("shift is not assigned to you")), nil
	}
	return shift, nil, nil
}

// OfferShift assigns personnelID to an open pending slot. The shift stays
// pending until the guard accepts.
func (s *ShiftService) OfferShift(ctx context.Context, shiftID, personnelID uuid.UUID, matchScore float64) (*TransitionResult, error) {
	shift, res, err := s.loadShift(ctx, shiftID)
	if shift == nil {
		return res, err
	}
	if !shift.IsUnfilled() {
		return failed(shift, NewAlreadyFilledError(shiftID)), nil
	}

	pending := models.ShiftStatusPending
	updated, ok, err := s.shifts.CompareAndSwap(ctx, shiftID,
		models.ShiftPredicate{
			Statuses:          []models.ShiftStatus{models.ShiftStatusPending},
			RequireUnassigned: true,
		},
		models.ShiftUpdate{Status: &pending, PersonnelID: &personnelID},
	)
	if err != nil {
		return nil, err
	}
	if !ok {
		return failed(shift, NewAlreadyFilledError(shiftID)), nil
	}

	if guard := s.userOf(ctx, personnelID); guard != uuid.Nil {
		s.notifier.Notify(ctx, guard, "New shift offer",
			fmt.Sprintf("You have been offered a %s shift starting %s", updated.Role, updated.ScheduledStart.Format(time.RFC1123)),
			models.ShiftOfferedPayload{
				ShiftID:        updated.ID,
				BookingID:      updated.BookingID,
				Role:           updated.Role,
				HourlyRate:     updated.HourlyRate,
				ScheduledStart: updated.ScheduledStart,
				MatchScore:     matchScore,
			})
	}

	return succeeded(updated), nil
}

// AcceptShift moves an offered shift to accepted
func (s *ShiftService) AcceptShift(ctx context.Context, shiftID, personnelID uuid.UUID) (*TransitionResult, error) {
	shift, res, err := s.loadOwnShift(ctx, shiftID, personnelID)
	if shift == nil {
		return res, err
	}

	now := s.now()
	res, err = s.transition(ctx, shift, models.ShiftStatusAccepted,
		models.ShiftPredicate{PersonnelID: &personnelID},
		models.ShiftUpdate{AcceptedAt: &now},
	)
	if err != nil || !res.Success {
		return res, err
	}

	s.notifyVenue(ctx, res.Shift, "Shift accepted", "A guard has accepted your shift",
		models.NewShiftStatusPayload(models.NotificationShiftAccepted, res.Shift))
	return res, nil
}

// DeclineShift turns down an offered shift and reopens the slot
func (s *ShiftService) DeclineShift(ctx context.Context, shiftID, personnelID uuid.UUID) (*TransitionResult, error) {
	shift, res, err := s.loadOwnShift(ctx, shiftID, personnelID)
	if shift == nil {
		return res, err
	}

	res, err = s.transition(ctx, shift, models.ShiftStatusDeclined,
		models.ShiftPredicate{PersonnelID: &personnelID},
		models.ShiftUpdate{},
	)
	if err != nil || !res.Success {
		return res, err
	}

	s.notifyVenue(ctx, res.Shift, "Shift declined", "A guard declined your shift; we are finding someone else",
		models.NewShiftStatusPayload(models.NotificationShiftDeclined, res.Shift))
	s.reopenSlot(ctx, res.Shift)
	return res, nil
}

// CheckIn records the guard's arrival. A late guard who arrives clears
// any open replacement search.
func (s *ShiftService) CheckIn(ctx context.Context, shiftID, personnelID uuid.UUID, loc Location) (*TransitionResult, error) {
	shift, res, err := s.loadOwnShift(ctx, shiftID, personnelID)
	if shift == nil {
		return res, err
	}

	now := s.now()
	pred := models.ShiftPredicate{PersonnelID: &personnelID}
	upd := models.ShiftUpdate{ActualStart: &now, CheckInLat: loc.Latitude, CheckInLng: loc.Longitude}
	if shift.DispatcherStatus.IsOpen() {
		none := models.DispatcherStatusNone
		notUrgent := false
		pred.DispatcherStatuses = []models.DispatcherStatus{shift.DispatcherStatus}
		upd.DispatcherStatus = &none
		upd.IsUrgent = &notUrgent
	}

	res, err = s.transition(ctx, shift, models.ShiftStatusCheckedIn, pred, upd)
	if err != nil || !res.Success {
		return res, err
	}

	s.notifyVenue(ctx, res.Shift, "Guard on site", "Your guard has checked in",
		models.NewShiftStatusPayload(models.NotificationGuardCheckedIn, res.Shift))
	return res, nil
}

// CheckOut closes a worked shift, computes hours and pay, requests a
// review and raises the shift-completed event for payment
func (s *ShiftService) CheckOut(ctx context.Context, shiftID, personnelID uuid.UUID, loc Location) (*TransitionResult, error) {
	shift, res, err := s.loadOwnShift(ctx, shiftID, personnelID)
	if shift == nil {
		return res, err
	}
	if !shift.Status.CanTransitionTo(models.ShiftStatusCheckedOut) {
		return failed(shift, NewInvalidTransitionError(shift.Status, models.ShiftStatusCheckedOut)), nil
	}
	if shift.ActualStart == nil {
		return failed(shift, NewValidationError("cannot check out before checking in")), nil
	}

	now := s.now()
	hours, pay := computePay(*shift.ActualStart, now, shift.HourlyRate)

	res, err = s.transition(ctx, shift, models.ShiftStatusCheckedOut,
		models.ShiftPredicate{PersonnelID: &personnelID},
		models.ShiftUpdate{
			ActualEnd:   &now,
			CheckOutLat: loc.Latitude,
			CheckOutLng: loc.Longitude,
			HoursWorked: &hours,
			TotalPay:    &pay,
		},
	)
	if err != nil || !res.Success {
		return res, err
	}
	done := res.Shift

	booking := s.bookingOf(ctx, done)
	if booking != nil {
		s.notifier.Notify(ctx, booking.VenueUserID, "Shift completed",
			fmt.Sprintf("Shift completed: %.2f hours, total %.2f. Please rate your guard.", hours, pay),
			models.ShiftCompletedPayload{ShiftID: done.ID, PersonnelID: personnelID, HoursWorked: hours, TotalPay: pay})
	}
	if guard := s.userOf(ctx, personnelID); guard != uuid.Nil {
		s.notifier.Notify(ctx, guard, "How did it go?", "Your shift is complete. Tell us about the venue.",
			models.ReviewRequestPayload{ShiftID: done.ID, PersonnelID: personnelID})
	}

	event := models.ShiftCompletedEvent{
		ShiftID:     done.ID,
		PersonnelID: personnelID,
		HoursWorked: hours,
		HourlyRate:  done.HourlyRate,
		GrossPay:    pay,
		CompletedAt: now,
	}
	if booking != nil {
		event.VenueID = booking.VenueID
		event.AgencyID = booking.AgencyID
	}
	if err := s.payments.PublishShiftCompleted(ctx, event); err != nil {
		s.logger.WithError(err).WithField("shift_id", done.ID).Error("Failed to publish shift completed event")
	}

	return res, nil
}

// computePay returns hours rounded to 2 decimals and pay computed from
// the rounded hours
func computePay(start, end time.Time, hourlyRate float64) (hours, pay float64) {
	hours = round2(end.Sub(start).Hours())
	pay = round2(hours * hourlyRate)
	return hours, pay
}

// MarkNoShow records that the assigned guard never arrived and applies
// the no-show penalty once
func (s *ShiftService) MarkNoShow(ctx context.Context, shiftID uuid.UUID, actor models.Actor, notes string) (*TransitionResult, error) {
	shift, res, err := s.loadShift(ctx, shiftID)
	if shift == nil {
		return res, err
	}

	booking := s.bookingOf(ctx, shift)
	if !actor.IsAdmin() && (booking == nil || booking.VenueUserID != actor.UserID) {
		return failed(shift, NewUnauthorizedError("only the booking venue can mark a no-show")), nil
	}
	if shift.PersonnelID == nil {
		return failed(shift, NewValidationError("shift has no assigned guard")), nil
	}
	guardID := *shift.PersonnelID

	now := s.now()
	upd := models.ShiftUpdate{NoShowAt: &now}
	if notes != "" {
		upd.NoShowNotes = &notes
	}
	res, err = s.transition(ctx, shift, models.ShiftStatusNoShow,
		models.ShiftPredicate{PersonnelID: &guardID}, upd)
	if err != nil || !res.Success {
		return res, err
	}

	payload := models.NoShowPayload{ShiftID: shift.ID, PersonnelID: guardID, Notes: notes}
	if booking != nil {
		s.notifier.Notify(ctx, booking.VenueUserID, "Guard no-show", "Your guard did not arrive for the shift", payload)
	}
	guardUser := s.userOf(ctx, guardID)
	if guardUser != uuid.Nil {
		s.notifier.Notify(ctx, guardUser, "Marked as no-show", "You were marked as a no-show for your shift", payload)
	}

	s.applyNoShowPenalty(ctx, res.Shift.ID, guardID, guardUser)
	return res, nil
}

// applyNoShowPenalty deducts the no-show penalty and tells the guard
func (s *ShiftService) applyNoShowPenalty(ctx context.Context, shiftID, guardID, guardUser uuid.UUID) {
	result, err := s.scores.Penalize(ctx, guardID, shiftID, models.ScoreReasonNoShow, s.policy.NoShowPenalty)
	if err != nil {
		s.logger.WithError(err).WithField("shift_id", shiftID).Error("Failed to apply no-show penalty")
		return
	}
	if !result.Applied || guardUser == uuid.Nil {
		return
	}
	s.notifier.Notify(ctx, guardUser, "Shield Score penalty",
		fmt.Sprintf("Your Shield Score dropped by %.0f to %.2f", s.policy.NoShowPenalty, result.ScoreAfter),
		models.ScorePenaltyPayload{
			ShiftID:    shiftID,
			Reason:     models.ScoreReasonNoShow,
			Delta:      -s.policy.NoShowPenalty,
			ScoreAfter: result.ScoreAfter,
		})
}

// Cancel moves a live shift to cancelled, recording who cancelled and why
func (s *ShiftService) Cancel(ctx context.Context, shift *models.Shift, by models.CancelledBy, reason string) (*TransitionResult, error) {
	now := s.now()
	role := string(by)
	upd := models.ShiftUpdate{CancelledAt: &now, CancelledByRole: &role}
	if reason != "" {
		upd.CancelReason = &reason
	}
	pred := models.ShiftPredicate{}
	if shift.PersonnelID != nil {
		pred.PersonnelID = shift.PersonnelID
	} else {
		pred.RequireUnassigned = true
	}
	return s.transition(ctx, shift, models.ShiftStatusCancelled, pred, upd)
}

// reopenSlot creates a fresh open slot for a shift that lost its guard
// before it started
func (s *ShiftService) reopenSlot(ctx context.Context, shift *models.Shift) *models.Shift {
	if !shift.ScheduledStart.After(s.now()) {
		return nil
	}
	slot := &models.Shift{
		BookingID:      shift.BookingID,
		Role:           shift.Role,
		HourlyRate:     shift.HourlyRate,
		ScheduledStart: shift.ScheduledStart,
		ScheduledEnd:   shift.ScheduledEnd,
	}
	if err := s.shifts.Create(ctx, slot); err != nil {
		s.logger.WithError(err).WithField("shift_id", shift.ID).Error("Failed to reopen shift slot")
		return nil
	}
	return slot
}

func (s *ShiftService) notifyVenue(ctx context.Context, shift *models.Shift, title, body string, payload models.NotificationPayload) {
	if booking := s.bookingOf(ctx, shift); booking != nil {
		s.notifier.Notify(ctx, booking.VenueUserID, title, body, payload)
	}
}

// bookingOf loads the shift's booking; failures are logged and yield nil
func (s *ShiftService) bookingOf(ctx context.Context, shift *models.Shift) *models.Booking {
	booking, err := s.bookings.GetByID(ctx, shift.BookingID)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", shift.BookingID).Warn("Failed to load booking for notification")
		return nil
	}
	return booking
}

// userOf resolves a guard's user id; failures are logged and yield uuid.Nil
func (s *ShiftService) userOf(ctx context.Context, personnelID uuid.UUID) uuid.UUID {
	p, err := s.personnel.GetByID(ctx, personnelID)
	if err != nil {
		s.logger.WithError(err).WithField("personnel_id", personnelID).Warn("Failed to load personnel for notification")
		return uuid.Nil
	}
	if p == nil {
		return uuid.Nil
	}
	return p.UserID
}
