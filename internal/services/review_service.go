package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/database"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// ReviewResult is the outcome of a review submission
type ReviewResult struct {
	Success    bool                `json:"success"`
	Review     *models.ShiftReview `json:"review,omitempty"`
	ScoreDelta float64             `json:"score_delta"`
	ScoreAfter *float64            `json:"score_after,omitempty"`
	Error      *EngineError        `json:"error,omitempty"`
}

// ReviewService records venue ratings of completed shifts
type ReviewService struct {
	shifts   ShiftStore
	bookings BookingStore
	reviews  ReviewStore
	scores   *ShieldScoreService
	logger   *logrus.Logger
}

// NewReviewService creates a new ReviewService
func NewReviewService(shifts ShiftStore, bookings BookingStore, reviews ReviewStore, scores *ShieldScoreService, logger *logrus.Logger) *ReviewService {
	return &ReviewService{
		shifts:   shifts,
		bookings: bookings,
		reviews:  reviews,
		scores:   scores,
		logger:   logger,
	}
}

// SubmitReview rates a checked-out shift 1-5. The guard's Shield Score
// moves by rating-3, once per shift.
func (s *ReviewService) SubmitReview(ctx context.Context, shiftID uuid.UUID, actor models.Actor, rating int, comment *string) (*ReviewResult, error) {
	if rating < 1 || rating > 5 {
		return &ReviewResult{Error: NewValidationError("rating must be between 1 and 5, got %d", rating)}, nil
	}

	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return &ReviewResult{Error: NewNotFoundError("shift", shiftID)}, nil
	}
	if shift.Status != models.ShiftStatusCheckedOut || shift.PersonnelID == nil {
		return &ReviewResult{Error: NewInvalidStateError(shift.Status, "only completed shifts can be reviewed")}, nil
	}

	booking, err := s.bookings.GetByID(ctx, shift.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.VenueUserID != actor.UserID {
		return &ReviewResult{Error: NewUnauthorizedError("only the booking venue can review this shift")}, nil
	}

	review := &models.ShiftReview{
		ShiftID:     shift.ID,
		PersonnelID: *shift.PersonnelID,
		ReviewerID:  actor.UserID,
		Rating:      rating,
		Comment:     comment,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, database.ErrDuplicateReview) {
			return &ReviewResult{Error: NewInvalidStateError(shift.Status, "shift has already been reviewed")}, nil
		}
		return nil, err
	}

	result := &ReviewResult{Success: true, Review: review, ScoreDelta: float64(rating - 3)}
	if result.ScoreDelta != 0 {
		change, err := s.scores.Apply(ctx, review.PersonnelID, shift.ID, models.ScoreReasonReview, result.ScoreDelta)
		if err != nil {
			s.logger.WithError(err).WithField("shift_id", shift.ID).Error("Failed to apply review score change")
		} else if change.Applied {
			after := change.ScoreAfter
			result.ScoreAfter = &after
		}
	}

	s.logger.WithFields(logrus.Fields{
		"shift_id":     shift.ID,
		"personnel_id": review.PersonnelID,
		"rating":       rating,
	}).Info("Shift reviewed")

	return result, nil
}
