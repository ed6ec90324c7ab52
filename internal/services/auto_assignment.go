package services

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/pkg/validator"
	"github.com/sirupsen/logrus"
)

// ReasonNoCandidates is reported for a shift nobody could fill
const ReasonNoCandidates = "No available candidates found"

// AutoAssignOptions tunes an auto-assignment run
type AutoAssignOptions struct {
	MinScore           float64              `json:"min_score" validate:"min=0,max=100"`
	PreferredIDs       []uuid.UUID          `json:"preferred_ids,omitempty"`
	ExcludedIDs        []uuid.UUID          `json:"excluded_ids,omitempty"`
	Weights            *config.ScoreWeights `json:"weights,omitempty"`
	PrioritizeShield   bool                 `json:"prioritize_shield_score,omitempty"`
	PrioritizeDistance bool                 `json:"prioritize_distance,omitempty"`
	PrioritizeSkill    bool                 `json:"prioritize_skills,omitempty"`
	MaxDistanceKm      *float64             `json:"max_distance_km,omitempty" validate:"omitempty,gt=0"`
}

func (o AutoAssignOptions) scoreOptions() ScoreOptions {
	return ScoreOptions{
		Weights:            o.Weights,
		PrioritizeShield:   o.PrioritizeShield,
		PrioritizeDistance: o.PrioritizeDistance,
		PrioritizeSkill:    o.PrioritizeSkill,
		MaxDistanceKm:      o.MaxDistanceKm,
		PreferredIDs:       o.PreferredIDs,
	}
}

// ShiftAssignment reports the outcome for one shift
type ShiftAssignment struct {
	ShiftID              uuid.UUID       `json:"shift_id"`
	Role                 string          `json:"role"`
	Assigned             bool            `json:"assigned"`
	PersonnelID          *uuid.UUID      `json:"personnel_id,omitempty"`
	Score                *ScoreBreakdown `json:"score,omitempty"`
	CandidatesConsidered int             `json:"candidates_considered"`
	Reason               string          `json:"reason,omitempty"`
}

// AutoAssignResult reports a whole run. Each shift carries its own outcome.
type AutoAssignResult struct {
	BookingID  uuid.UUID         `json:"booking_id"`
	Assigned   int               `json:"assigned"`
	Unassigned int               `json:"unassigned"`
	Shifts     []ShiftAssignment `json:"shifts"`
}

// rankedCandidate pairs a guard with their score for one shift
type rankedCandidate struct {
	personnel *models.Personnel
	score     ScoreBreakdown
}

// AutoAssignmentService ranks candidates for a booking's open shifts and
// offers each shift to the best one
type AutoAssignmentService struct {
	shifts       ShiftStore
	bookings     BookingStore
	personnel    PersonnelStore
	availability *AvailabilityService
	scorer       *Scorer
	shiftSvc     *ShiftService
	logger       *logrus.Logger
}

// NewAutoAssignmentService creates a new AutoAssignmentService
func NewAutoAssignmentService(
	shifts ShiftStore,
	bookings BookingStore,
	personnel PersonnelStore,
	availability *AvailabilityService,
	scorer *Scorer,
	shiftSvc *ShiftService,
	logger *logrus.Logger,
) *AutoAssignmentService {
	return &AutoAssignmentService{
		shifts:       shifts,
		bookings:     bookings,
		personnel:    personnel,
		availability: availability,
		scorer:       scorer,
		shiftSvc:     shiftSvc,
		logger:       logger,
	}
}

// AutoAssignShifts offers every unassigned pending shift of the booking to
// its best candidate. Shifts are processed one at a time so a guard is
// never offered two shifts of the same booking in one run.
func (s *AutoAssignmentService) AutoAssignShifts(ctx context.Context, bookingID uuid.UUID, opts AutoAssignOptions) (*AutoAssignResult, error) {
	if err := validator.Struct(opts); err != nil {
		var fields validator.FieldErrors
		if errors.As(err, &fields) {
			return nil, NewValidationError("%s", fields.Error())
		}
		return nil, err
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, NewNotFoundError("booking", bookingID)
	}

	open, err := s.shifts.ListUnfilledByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	result := &AutoAssignResult{BookingID: bookingID, Shifts: []ShiftAssignment{}}
	if len(open) == 0 {
		return result, nil
	}

	pool, err := s.personnel.ListActive(ctx, opts.ExcludedIDs)
	if err != nil {
		return nil, err
	}

	excluded := make(map[uuid.UUID]bool, len(opts.ExcludedIDs))
	for _, id := range opts.ExcludedIDs {
		excluded[id] = true
	}

	log := s.logger.WithField("booking_id", bookingID)
	for _, shift := range open {
		assignment := s.assignShift(ctx, booking, shift, pool, excluded, opts)
		if assignment.Assigned {
			excluded[*assignment.PersonnelID] = true
			result.Assigned++
		} else {
			result.Unassigned++
		}
		result.Shifts = append(result.Shifts, assignment)
	}

	log.WithFields(logrus.Fields{
		"assigned":   result.Assigned,
		"unassigned": result.Unassigned,
	}).Info("Auto-assignment run complete")

	return result, nil
}

// assignShift ranks the pool for one shift and offers it down the list
// until an offer lands
func (s *AutoAssignmentService) assignShift(ctx context.Context, booking *models.Booking, shift *models.Shift, pool []*models.Personnel, excluded map[uuid.UUID]bool, opts AutoAssignOptions) ShiftAssignment {
	assignment := ShiftAssignment{ShiftID: shift.ID, Role: shift.Role}
	log := s.logger.WithField("shift_id", shift.ID)

	ranked := s.rankCandidates(ctx, booking, shift, pool, excluded, opts)
	assignment.CandidatesConsidered = len(ranked)
	if len(ranked) == 0 {
		assignment.Reason = ReasonNoCandidates
		return assignment
	}

	for _, c := range ranked {
		res, err := s.shiftSvc.OfferShift(ctx, shift.ID, c.personnel.ID, c.score.Total)
		if err != nil {
			log.WithError(err).Error("Failed to offer shift")
			assignment.Reason = err.Error()
			return assignment
		}
		if res.Success {
			id := c.personnel.ID
			score := c.score
			assignment.Assigned = true
			assignment.PersonnelID = &id
			assignment.Score = &score
			assignment.Reason = ""
			return assignment
		}
		if res.Error != nil {
			assignment.Reason = res.Error.Message
			// The slot itself was taken; trying further candidates is pointless
			if res.Error.Kind == KindAlreadyFilled || res.Error.Kind == KindNotFound {
				return assignment
			}
		}
	}
	return assignment
}

// rankCandidates applies the availability gate, scores the rest and sorts
// by score, then distance, then reliability
func (s *AutoAssignmentService) rankCandidates(ctx context.Context, booking *models.Booking, shift *models.Shift, pool []*models.Personnel, excluded map[uuid.UUID]bool, opts AutoAssignOptions) []rankedCandidate {
	scoreOpts := opts.scoreOptions()
	ranked := make([]rankedCandidate, 0, len(pool))

	for _, p := range pool {
		if excluded[p.ID] || !p.Active() {
			continue
		}

		avail, err := s.availability.ResolveWindow(ctx, p.ID, shift.ScheduledStart, shift.ScheduledEnd)
		if err != nil {
			s.logger.WithError(err).WithField("personnel_id", p.ID).Warn("Availability check failed; skipping candidate")
			continue
		}
		if !avail.Available && avail.Reason.IsHardBlock() {
			continue
		}

		score := s.scorer.Score(p, shift, booking.VenueLatitude, booking.VenueLongitude, scoreOpts)
		if score.Total < opts.MinScore {
			continue
		}
		ranked = append(ranked, rankedCandidate{personnel: p, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score.Total != b.score.Total {
			return a.score.Total > b.score.Total
		}
		da, db := distanceOrInf(a.score.DistanceKm), distanceOrInf(b.score.DistanceKm)
		if da != db {
			return da < db
		}
		return a.personnel.Reliability() > b.personnel.Reliability()
	})

	return ranked
}

func distanceOrInf(d *float64) float64 {
	if d == nil {
		return math.Inf(1)
	}
	return *d
}
