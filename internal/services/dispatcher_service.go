package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// GuardStatusAction is what CheckGuardStatus did
type GuardStatusAction string

const (
	GuardActionNone             GuardStatusAction = "none"
	GuardActionWelfareCheck     GuardStatusAction = "welfare_check"
	GuardActionAwaitingCheckIn  GuardStatusAction = "awaiting_check_in"
	GuardActionEscalated        GuardStatusAction = "escalated"
	GuardActionAlreadyEscalated GuardStatusAction = "already_escalated"
)

// GuardStatusResult reports one poll of an accepted shift
type GuardStatusResult struct {
	ShiftID          uuid.UUID               `json:"shift_id"`
	Action           GuardStatusAction       `json:"action"`
	MinutesLate      float64                 `json:"minutes_late"`
	DispatcherStatus models.DispatcherStatus `json:"dispatcher_status,omitempty"`
	Error            *EngineError            `json:"error,omitempty"`
}

// ReplacementCandidate is one standby guard an urgent offer went to
type ReplacementCandidate struct {
	PersonnelID uuid.UUID `json:"personnel_id"`
	ShieldScore float64   `json:"shield_score"`
	DistanceKm  *float64  `json:"distance_km,omitempty"`
}

// ReplacementSearchResult reports a FindReplacement run
type ReplacementSearchResult struct {
	TransitionResult
	SurgeRate  float64                `json:"surge_rate"`
	Candidates []ReplacementCandidate `json:"candidates"`
}

// SweepResult summarises one pass over accepted shifts
type SweepResult struct {
	Checked   int                       `json:"checked"`
	Welfare   int                       `json:"welfare_checks"`
	Escalated int                       `json:"escalated"`
	Errors    int                       `json:"errors"`
	Results   []*GuardStatusResult      `json:"results"`
	Actions   map[GuardStatusAction]int `json:"actions"`
}

// DispatcherService recovers shifts whose guard has not arrived. It
// holds no timers: an external scheduler polls CheckGuardStatus.
type DispatcherService struct {
	shifts    ShiftStore
	bookings  BookingStore
	personnel PersonnelStore
	shiftSvc  *ShiftService
	notifier  Notifier
	offers    OfferRegistry
	policy    config.Policy
	cfg       config.DispatchConfig
	offerTTL  time.Duration
	logger    *logrus.Logger
	now       func() time.Time
	runAsync  func(func())

	// welfare checks sent while the offer registry was unreachable
	welfareMu   sync.Mutex
	welfareSent map[uuid.UUID]time.Time
}

// NewDispatcherService creates a new DispatcherService. offers may be nil,
// in which case AssignReplacement accepts any eligible standby guard.
func NewDispatcherService(
	shifts ShiftStore,
	bookings BookingStore,
	personnel PersonnelStore,
	shiftSvc *ShiftService,
	notifier Notifier,
	offers OfferRegistry,
	cfg config.DispatchConfig,
	offerTTL time.Duration,
	logger *logrus.Logger,
) *DispatcherService {
	return &DispatcherService{
		shifts:    shifts,
		bookings:  bookings,
		personnel: personnel,
		shiftSvc:  shiftSvc,
		notifier:  notifier,
		offers:    offers,
		policy:    cfg.Policy,
		cfg:       cfg,
		offerTTL:  offerTTL,
		logger:    logger,
		now:       time.Now,
		runAsync:  func(f func()) { go f() },

		welfareSent: make(map[uuid.UUID]time.Time),
	}
}

// CheckGuardStatus polls an accepted shift whose start has passed. A guard
// a little late gets one welfare check; past the threshold the shift is
// marked at risk and a replacement search starts in the background.
func (s *DispatcherService) CheckGuardStatus(ctx context.Context, shiftID uuid.UUID, actor models.Actor) (*GuardStatusResult, error) {
	result := &GuardStatusResult{ShiftID: shiftID, Action: GuardActionNone}

	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		result.Error = NewNotFoundError("shift", shiftID)
		return result, nil
	}
	if rejection, err := s.authorize(ctx, shift, actor); err != nil {
		return nil, err
	} else if rejection != nil {
		result.Error = rejection
		return result, nil
	}
	result.DispatcherStatus = shift.DispatcherStatus

	if shift.Status != models.ShiftStatusAccepted || shift.PersonnelID == nil {
		return result, nil
	}

	minutesLate := s.now().Sub(shift.ScheduledStart).Minutes()
	if minutesLate <= 0 {
		return result, nil
	}
	result.MinutesLate = round2(minutesLate)

	if shift.DispatcherStatus != models.DispatcherStatusNone {
		result.Action = GuardActionAlreadyEscalated
		return result, nil
	}

	guardID := *shift.PersonnelID
	guardUser := s.shiftSvc.userOf(ctx, guardID)
	log := s.logger.WithFields(logrus.Fields{
		"shift_id":     shiftID,
		"personnel_id": guardID,
		"minutes_late": result.MinutesLate,
	})

	if minutesLate < s.policy.LateThresholdMinutes {
		if !s.claimWelfareCheck(ctx, shiftID) {
			result.Action = GuardActionAwaitingCheckIn
			return result, nil
		}
		if guardUser != uuid.Nil {
			s.notifier.Notify(ctx, guardUser, "Are you on your way?",
				fmt.Sprintf("Your shift started %.0f minutes ago. Please check in when you arrive.", minutesLate),
				models.WelfareCheckPayload{ShiftID: shiftID, ScheduledStart: shift.ScheduledStart, MinutesLate: result.MinutesLate})
		}
		result.Action = GuardActionWelfareCheck
		log.Info("Welfare check sent")
		return result, nil
	}

	atRisk := models.DispatcherStatusAtRisk
	updated, ok, err := s.shifts.CompareAndSwap(ctx, shiftID,
		models.ShiftPredicate{
			Statuses:           []models.ShiftStatus{models.ShiftStatusAccepted},
			DispatcherStatuses: []models.DispatcherStatus{models.DispatcherStatusNone},
			PersonnelID:        &guardID,
		},
		models.ShiftUpdate{DispatcherStatus: &atRisk},
	)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else escalated, or the guard checked in meanwhile
		if current, err := s.shifts.GetByID(ctx, shiftID); err == nil && current != nil {
			result.DispatcherStatus = current.DispatcherStatus
		}
		result.Action = GuardActionAlreadyEscalated
		return result, nil
	}
	result.DispatcherStatus = updated.DispatcherStatus
	result.Action = GuardActionEscalated

	if guardUser != uuid.Nil {
		s.notifier.Notify(ctx, guardUser, "You are late for your shift",
			fmt.Sprintf("You are %.0f minutes late. We are looking for a replacement.", minutesLate),
			models.LateWarningPayload{ShiftID: shiftID, MinutesLate: result.MinutesLate})
	}
	log.Warn("Guard late; shift marked at risk")

	s.runAsync(func() {
		searchCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ReplacementTimeout)
		defer cancel()
		res, err := s.FindReplacement(searchCtx, shiftID, models.SystemActor)
		switch {
		case err != nil:
			log.WithError(err).Error("Replacement search failed")
		case !res.Success && res.Error != nil:
			log.WithField("error", res.Error.Message).Warn("Replacement search did not start")
		default:
			log.WithField("candidates", len(res.Candidates)).Info("Replacement search finished")
		}
	})

	return result, nil
}

// FindReplacement marks the shift urgent at the surge rate and broadcasts
// an offer to the nearest available standby guards. Only a shift already
// escalated can be searched, except by an admin.
func (s *DispatcherService) FindReplacement(ctx context.Context, shiftID uuid.UUID, actor models.Actor) (*ReplacementSearchResult, error) {
	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return &ReplacementSearchResult{TransitionResult: *failed(nil, NewNotFoundError("shift", shiftID))}, nil
	}
	if rejection, err := s.authorize(ctx, shift, actor); err != nil {
		return nil, err
	} else if rejection != nil {
		return &ReplacementSearchResult{TransitionResult: *failed(shift, rejection)}, nil
	}
	if shift.Status != models.ShiftStatusAccepted {
		return &ReplacementSearchResult{TransitionResult: *failed(shift,
			NewInvalidStateError(shift.Status, "only accepted shifts can be replaced"))}, nil
	}
	if shift.DispatcherStatus == models.DispatcherStatusReplacementFound {
		return &ReplacementSearchResult{TransitionResult: *failed(shift, NewAlreadyFilledError(shiftID))}, nil
	}
	if shift.DispatcherStatus == models.DispatcherStatusNone && !actor.IsAdmin() {
		return &ReplacementSearchResult{TransitionResult: *failed(shift,
			NewInvalidStateError(shift.Status, "the guard has not been marked at risk"))}, nil
	}

	surge := round2(shift.HourlyRate * s.policy.SurgeMultiplier)
	searching := models.DispatcherStatusSearching
	urgent := true
	pred := models.ShiftPredicate{
		Statuses:           []models.ShiftStatus{models.ShiftStatusAccepted},
		DispatcherStatuses: []models.DispatcherStatus{shift.DispatcherStatus},
	}
	if shift.PersonnelID != nil {
		pred.PersonnelID = shift.PersonnelID
	}
	updated, ok, err := s.shifts.CompareAndSwap(ctx, shiftID, pred,
		models.ShiftUpdate{DispatcherStatus: &searching, IsUrgent: &urgent, SurgeRate: &surge})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.shifts.GetByID(ctx, shiftID)
		if err != nil {
			return nil, err
		}
		return &ReplacementSearchResult{TransitionResult: *failed(current, NewAlreadyFilledError(shiftID))}, nil
	}

	log := s.logger.WithFields(logrus.Fields{"shift_id": shiftID, "surge_rate": surge})
	result := &ReplacementSearchResult{
		TransitionResult: *succeeded(updated),
		SurgeRate:        surge,
		Candidates:       []ReplacementCandidate{},
	}

	booking, err := s.bookings.GetByID(ctx, shift.BookingID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.standbyCandidates(ctx, shift, booking)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		failedStatus := models.DispatcherStatusFailed
		if failedShift, ok, err := s.shifts.CompareAndSwap(ctx, shiftID,
			models.ShiftPredicate{
				Statuses:           []models.ShiftStatus{models.ShiftStatusAccepted},
				DispatcherStatuses: []models.DispatcherStatus{models.DispatcherStatusSearching},
			},
			models.ShiftUpdate{DispatcherStatus: &failedStatus},
		); err != nil {
			return nil, err
		} else if ok {
			result.Shift = failedShift
		}
		if booking != nil {
			s.notifier.Notify(ctx, booking.VenueUserID, "No replacement available",
				"Your guard has not arrived and no standby guard is nearby. Please contact support.",
				models.NoReplacementPayload{ShiftID: shiftID})
		}
		log.Warn("No standby guards available for replacement")
		return result, nil
	}

	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.personnel.ID)
		result.Candidates = append(result.Candidates, ReplacementCandidate{
			PersonnelID: c.personnel.ID,
			ShieldScore: c.personnel.ShieldScore,
			DistanceKm:  c.distanceKm,
		})
		s.notifier.Notify(ctx, c.personnel.UserID, "Urgent shift available",
			fmt.Sprintf("A %s shift needs cover now at %.2f per hour", shift.Role, surge),
			models.UrgentOfferPayload{
				ShiftID:        shiftID,
				Role:           shift.Role,
				SurgeRate:      surge,
				ScheduledStart: shift.ScheduledStart,
				ScheduledEnd:   shift.ScheduledEnd,
				DistanceKm:     c.distanceKm,
			})
	}

	if s.offers != nil {
		if err := s.offers.RecordOffer(ctx, shiftID, ids, s.offerTTL); err != nil {
			log.WithError(err).Warn("Failed to record urgent offer")
		}
	}

	log.WithField("candidates", len(ids)).Info("Urgent offer broadcast")
	return result, nil
}

type standbyCandidate struct {
	personnel  *models.Personnel
	distanceKm *float64
}

// standbyCandidates picks the broadcast list: the standby pool by Shield
// Score, narrowed to the search radius when the venue is located, minus
// anyone working another shift right now
func (s *DispatcherService) standbyCandidates(ctx context.Context, shift *models.Shift, booking *models.Booking) ([]standbyCandidate, error) {
	pool, err := s.personnel.ListStandby(ctx, shift.PersonnelID, s.policy.StandbyPoolSize)
	if err != nil {
		return nil, err
	}

	candidates := make([]standbyCandidate, 0, len(pool))
	if booking != nil && booking.HasVenueLocation() {
		for _, p := range pool {
			if !p.HasLocation() {
				continue
			}
			d := HaversineKm(*p.Latitude, *p.Longitude, *booking.VenueLatitude, *booking.VenueLongitude)
			if d > s.policy.SearchRadiusKm {
				continue
			}
			reported := round2(d)
			candidates = append(candidates, standbyCandidate{personnel: p, distanceKm: &reported})
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return *candidates[i].distanceKm < *candidates[j].distanceKm
		})
	} else {
		for _, p := range pool {
			candidates = append(candidates, standbyCandidate{personnel: p})
		}
	}

	if len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.personnel.ID)
	}
	busyIDs, err := s.shifts.ListBusyPersonnel(ctx, ids, s.now())
	if err != nil {
		return nil, err
	}
	busy := make(map[uuid.UUID]bool, len(busyIDs))
	for _, id := range busyIDs {
		busy[id] = true
	}

	free := candidates[:0]
	for _, c := range candidates {
		if !busy[c.personnel.ID] && c.personnel.Active() {
			free = append(free, c)
		}
	}
	if len(free) > s.policy.BroadcastSize {
		free = free[:s.policy.BroadcastSize]
	}
	return free, nil
}

// AssignReplacement lets a standby guard claim an urgent shift. Exactly one
// claim can win: the write is conditional on the search still being open.
func (s *DispatcherService) AssignReplacement(ctx context.Context, shiftID, personnelID uuid.UUID) (*TransitionResult, error) {
	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift == nil {
		return failed(nil, NewNotFoundError("shift", shiftID)), nil
	}
	if !shift.DispatcherStatus.IsOpen() || shift.Status != models.ShiftStatusAccepted {
		return failed(shift, NewAlreadyFilledError(shiftID)), nil
	}
	if shift.IsAssignedTo(personnelID) {
		return failed(shift, NewValidationError("the original guard cannot replace themselves")), nil
	}

	guard, err := s.personnel.GetByID(ctx, personnelID)
	if err != nil {
		return nil, err
	}
	if guard == nil {
		return failed(shift, NewNotFoundError("personnel", personnelID)), nil
	}
	if !guard.Active() {
		return failed(shift, NewValidationError("personnel %s is not active", personnelID)), nil
	}

	if s.offers != nil {
		known, offered, err := s.offers.WasOffered(ctx, shiftID, personnelID)
		if err != nil {
			s.logger.WithError(err).WithField("shift_id", shiftID).Warn("Offer registry unavailable; accepting claim")
		} else if known && !offered {
			return failed(shift, NewUnauthorizedError("this urgent shift was not offered to you")), nil
		}
	}

	original := shift.PersonnelID
	now := s.now()
	accepted := models.ShiftStatusAccepted
	found := models.DispatcherStatusReplacementFound
	notUrgent := false
	pred := models.ShiftPredicate{
		Statuses:           []models.ShiftStatus{models.ShiftStatusAccepted},
		DispatcherStatuses: []models.DispatcherStatus{models.DispatcherStatusAtRisk, models.DispatcherStatusSearching},
	}
	upd := models.ShiftUpdate{
		Status:           &accepted,
		PersonnelID:      &personnelID,
		DispatcherStatus: &found,
		IsUrgent:         &notUrgent,
		AcceptedAt:       &now,
	}
	if original != nil {
		pred.PersonnelID = original
		upd.OriginalPersonnelID = original
	}

	updated, ok, err := s.shifts.CompareAndSwap(ctx, shiftID, pred, upd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return failed(shift, NewAlreadyFilledError(shiftID)), nil
	}

	log := s.logger.WithFields(logrus.Fields{
		"shift_id":     shiftID,
		"personnel_id": personnelID,
	})
	log.Info("Replacement assigned")

	if original != nil {
		originalUser := s.shiftSvc.userOf(ctx, *original)
		s.shiftSvc.applyNoShowPenalty(ctx, shiftID, *original, originalUser)
		if originalUser != uuid.Nil {
			s.notifier.Notify(ctx, originalUser, "You have been replaced",
				"You did not check in and another guard has taken your shift.",
				models.NewReplacementPayload(models.NotificationGuardReplaced, updated, personnelID, original))
		}
	}

	rate := updated.HourlyRate
	if updated.SurgeRate != nil {
		rate = *updated.SurgeRate
	}
	s.notifier.Notify(ctx, guard.UserID, "Shift confirmed",
		fmt.Sprintf("You have the %s shift at %.2f per hour. Please head to the venue now.", updated.Role, rate),
		models.NewReplacementPayload(models.NotificationReplacementConfirmed, updated, personnelID, original))

	s.shiftSvc.notifyVenue(ctx, updated, "Replacement guard on the way",
		"Your original guard did not arrive. A replacement has accepted the shift.",
		models.NewReplacementPayload(models.NotificationGuardReplaced, updated, personnelID, original))

	if s.offers != nil {
		if err := s.offers.ClearOffer(ctx, shiftID); err != nil {
			log.WithError(err).Warn("Failed to clear urgent offer")
		}
	}

	return succeeded(updated), nil
}

// SweepAtRisk polls every accepted, not yet escalated shift that has
// already started
func (s *DispatcherService) SweepAtRisk(ctx context.Context) (*SweepResult, error) {
	limit := s.cfg.SweepBatchSize
	if limit <= 0 {
		limit = 200
	}

	shifts, err := s.shifts.ListAccepted(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accepted shifts: %w", err)
	}

	result := &SweepResult{
		Results: make([]*GuardStatusResult, 0, len(shifts)),
		Actions: make(map[GuardStatusAction]int),
	}
	for _, shift := range shifts {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		res, err := s.CheckGuardStatus(ctx, shift.ID, models.SystemActor)
		result.Checked++
		if err != nil {
			result.Errors++
			s.logger.WithError(err).WithField("shift_id", shift.ID).Error("Guard status check failed")
			continue
		}
		result.Actions[res.Action]++
		switch res.Action {
		case GuardActionWelfareCheck:
			result.Welfare++
		case GuardActionEscalated:
			result.Escalated++
		}
		result.Results = append(result.Results, res)
	}

	return result, nil
}

// authorize returns an Unauthorized error unless actor may operate the
// booking the shift belongs to
func (s *DispatcherService) authorize(ctx context.Context, shift *models.Shift, actor models.Actor) (*EngineError, error) {
	if actor.IsAdmin() {
		return nil, nil
	}
	booking, err := s.bookings.GetByID(ctx, shift.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil || !booking.OperableBy(actor) {
		return NewUnauthorizedError("shift belongs to another venue"), nil
	}
	return nil, nil
}

// claimWelfareCheck reports whether this poll should send the welfare
// check. Each shift gets at most one; the registry holds the marker so
// every instance sees it, with a local set as fallback.
func (s *DispatcherService) claimWelfareCheck(ctx context.Context, shiftID uuid.UUID) bool {
	ttl := s.cfg.WelfareCheckTTL
	if ttl <= 0 {
		ttl = s.offerTTL
	}
	if s.offers != nil {
		first, err := s.offers.MarkWelfareSent(ctx, shiftID, ttl)
		if err == nil {
			return first
		}
		s.logger.WithError(err).WithField("shift_id", shiftID).Warn("Offer registry unavailable; tracking welfare check locally")
	}

	now := s.now()
	s.welfareMu.Lock()
	defer s.welfareMu.Unlock()
	for id, sentAt := range s.welfareSent {
		if now.Sub(sentAt) > ttl {
			delete(s.welfareSent, id)
		}
	}
	if _, sent := s.welfareSent[shiftID]; sent {
		return false
	}
	s.welfareSent[shiftID] = now
	return true
}
