package services

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/pkg/validator"
	"github.com/sirupsen/logrus"
)

// BookingService posts bookings and serves their aggregate view
type BookingService struct {
	bookings BookingStore
	shifts   ShiftStore
	roles    *validator.RoleValidator
	logger   *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(bookings BookingStore, shifts ShiftStore, logger *logrus.Logger) *BookingService {
	return &BookingService{
		bookings: bookings,
		shifts:   shifts,
		roles:    validator.NewRoleValidator(),
		logger:   logger,
	}
}

// PostBooking creates a booking with one open pending shift per required
// guard. Role names are normalised, so "Door Supervisor" and
// "door-supervisor" are counted together.
func (s *BookingService) PostBooking(ctx context.Context, actor models.Actor, req models.PostBookingRequest) (*models.BookingWithShifts, error) {
	if !actor.HasRole(models.RoleVenue) && !actor.IsAdmin() {
		return nil, NewUnauthorizedError("only venues can post bookings")
	}

	if err := validator.Struct(req); err != nil {
		var fields validator.FieldErrors
		if errors.As(err, &fields) {
			return nil, NewValidationError("%s", fields.Error())
		}
		return nil, err
	}

	requirements := make(models.StaffRequirements)
	for role, qty := range req.StaffRequirements {
		name, err := s.roles.Validate(role)
		if err != nil {
			return nil, NewValidationError("staff_requirements[%s]: %s", role, err.Error())
		}
		requirements[name] += qty
	}
	rates := make(models.HourlyRates)
	for role, rate := range req.HourlyRates {
		name, err := s.roles.Validate(role)
		if err != nil {
			return nil, NewValidationError("hourly_rates[%s]: %s", role, err.Error())
		}
		rates[name] = rate
	}

	roles := make([]string, 0, len(requirements))
	for role := range requirements {
		if rates[role] <= 0 {
			return nil, NewValidationError("hourly_rates is missing a rate for role %s", role)
		}
		roles = append(roles, role)
	}
	sort.Strings(roles)

	booking := &models.Booking{
		VenueID:           req.VenueID,
		VenueUserID:       actor.UserID,
		AgencyID:          req.AgencyID,
		AgencyUserID:      req.AgencyUserID,
		VenueName:         req.VenueName,
		VenueLatitude:     req.VenueLatitude,
		VenueLongitude:    req.VenueLongitude,
		EventStart:        req.EventStart,
		EventEnd:          req.EventEnd,
		StaffRequirements: requirements,
		HourlyRates:       rates,
		Notes:             req.Notes,
	}

	shifts := make([]*models.Shift, 0, requirements.Headcount())
	for _, role := range roles {
		for i := 0; i < requirements[role]; i++ {
			shifts = append(shifts, &models.Shift{
				Role:           role,
				HourlyRate:     rates[role],
				ScheduledStart: req.EventStart,
				ScheduledEnd:   req.EventEnd,
				Status:         models.ShiftStatusPending,
			})
		}
	}

	if err := s.bookings.CreateWithShifts(ctx, booking, shifts); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"venue_id":   booking.VenueID,
		"shifts":     len(shifts),
	}).Info("Booking posted")

	return &models.BookingWithShifts{
		Booking: *booking,
		Status:  DeriveBookingStatus(shifts),
		Shifts:  shifts,
	}, nil
}

// GetBooking returns a booking with its shifts and derived status
func (s *BookingService) GetBooking(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.BookingWithShifts, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, NewNotFoundError("booking", id)
	}
	if !booking.OperableBy(actor) {
		return nil, NewUnauthorizedError("booking belongs to another venue")
	}

	shifts, err := s.shifts.ListByBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	return &models.BookingWithShifts{
		Booking: *booking,
		Status:  DeriveBookingStatus(shifts),
		Shifts:  shifts,
	}, nil
}

// DeriveBookingStatus folds shift statuses into the booking status.
// A booking whose shifts all ended without any checkout counts as cancelled.
func DeriveBookingStatus(shifts []*models.Shift) models.BookingStatus {
	if len(shifts) == 0 {
		return models.BookingStatusOpen
	}

	var live, accepted, staffed, checkedOut int
	for _, shift := range shifts {
		switch shift.Status {
		case models.ShiftStatusCheckedIn:
			return models.BookingStatusInProgress
		case models.ShiftStatusCheckedOut:
			checkedOut++
		}
		if shift.Status.IsTerminal() {
			continue
		}
		live++
		if shift.Status == models.ShiftStatusAccepted {
			accepted++
		}
		if shift.PersonnelID != nil {
			staffed++
		}
	}

	switch {
	case live == 0 && checkedOut > 0:
		return models.BookingStatusCompleted
	case live == 0:
		return models.BookingStatusCancelled
	case accepted == live:
		return models.BookingStatusConfirmed
	case staffed > 0:
		return models.BookingStatusPartiallyFilled
	default:
		return models.BookingStatusOpen
	}
}
