package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// AvailabilityService answers "is this person free for this window?" and
// manages the weekly, blocked and special availability records
type AvailabilityService struct {
	store  AvailabilityStore
	shifts ShiftStore
	loc    *time.Location
	logger *logrus.Logger
}

// NewAvailabilityService creates a new AvailabilityService. Dates and
// wall-clock windows are interpreted in loc.
func NewAvailabilityService(store AvailabilityStore, shifts ShiftStore, loc *time.Location, logger *logrus.Logger) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{store: store, shifts: shifts, loc: loc, logger: logger}
}

// Resolve checks a wall-clock window on a date. An end at or before the
// start is read as finishing the next day.
func (s *AvailabilityService) Resolve(ctx context.Context, personnelID uuid.UUID, date time.Time, start, end models.TimeOfDay) (*models.AvailabilityResult, error) {
	if start.Minutes() < 0 || end.Minutes() < 0 {
		return nil, NewValidationError("invalid time window %s-%s", start, end)
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
	absStart := day.Add(time.Duration(start.Minutes()) * time.Minute)
	absEnd := day.Add(time.Duration(end.Minutes()) * time.Minute)
	if !absEnd.After(absStart) {
		absEnd = absEnd.Add(24 * time.Hour)
	}
	return s.resolve(ctx, personnelID, day, start, end, absStart, absEnd)
}

// ResolveWindow checks an absolute interval, as used for shifts
func (s *AvailabilityService) ResolveWindow(ctx context.Context, personnelID uuid.UUID, startAt, endAt time.Time) (*models.AvailabilityResult, error) {
	localStart := startAt.In(s.loc)
	day := time.Date(localStart.Year(), localStart.Month(), localStart.Day(), 0, 0, 0, 0, s.loc)
	return s.resolve(ctx, personnelID, day,
		models.TimeOfDayFrom(localStart), models.TimeOfDayFrom(endAt.In(s.loc)),
		startAt, endAt)
}

// resolve applies the precedence rules in order, stopping at the first
// decisive one: blocked date, conflicting shift, special override,
// weekly pattern, default unavailable
func (s *AvailabilityService) resolve(ctx context.Context, personnelID uuid.UUID, day time.Time, start, end models.TimeOfDay, absStart, absEnd time.Time) (*models.AvailabilityResult, error) {
	blocked, err := s.store.GetBlocked(ctx, personnelID, day)
	if err != nil {
		return nil, err
	}
	if blocked != nil {
		return &models.AvailabilityResult{Available: false, Reason: models.AvailabilityReasonBlocked}, nil
	}

	conflicts, err := s.shifts.ListOverlapping(ctx, personnelID, absStart, absEnd)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		ids := make([]uuid.UUID, len(conflicts))
		for i, c := range conflicts {
			ids[i] = c.ID
		}
		return &models.AvailabilityResult{
			Available:           false,
			Reason:              models.AvailabilityReasonConflict,
			ConflictingShiftIDs: ids,
		}, nil
	}

	special, err := s.store.GetSpecial(ctx, personnelID, day)
	if err != nil {
		return nil, err
	}
	if special != nil {
		window := special.Window()
		if fits(window, start, end, absStart, absEnd) {
			return &models.AvailabilityResult{Available: true, Window: &window}, nil
		}
		return &models.AvailabilityResult{
			Available: false,
			Reason:    models.AvailabilityReasonOutsideWindow,
			Window:    &window,
		}, nil
	}

	dayName := day.Weekday().String()
	weekly, err := s.store.GetWeekly(ctx, personnelID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if weekly == nil {
		return &models.AvailabilityResult{Available: false, Reason: models.AvailabilityReasonNoRecord, DayName: dayName}, nil
	}
	if !weekly.IsAvailable {
		return &models.AvailabilityResult{Available: false, Reason: models.AvailabilityReasonDayOff, DayName: dayName}, nil
	}

	window := weekly.Window()
	if window == nil {
		return &models.AvailabilityResult{Available: true, DayName: dayName}, nil
	}
	if fits(*window, start, end, absStart, absEnd) {
		return &models.AvailabilityResult{Available: true, Window: window, DayName: dayName}, nil
	}
	return &models.AvailabilityResult{
		Available: false,
		Reason:    models.AvailabilityReasonOutsideWeekly,
		Window:    window,
		DayName:   dayName,
	}, nil
}

// fits reports whether a request lies inside window. No window spans a
// full day, so a request of 24 hours or more never fits.
func fits(window models.TimeWindow, start, end models.TimeOfDay, absStart, absEnd time.Time) bool {
	if absEnd.Sub(absStart) >= 24*time.Hour {
		return false
	}
	return window.Contains(start, end)
}

// ============================================================================
// AVAILABILITY CRUD
// ============================================================================

// Get returns the weekly pattern plus blocked and special dates for the
// next 90 days
func (s *AvailabilityService) Get(ctx context.Context, personnelID uuid.UUID, from time.Time) (*models.PersonnelAvailability, error) {
	to := from.AddDate(0, 0, 90)
	weekly, err := s.store.ListWeekly(ctx, personnelID)
	if err != nil {
		return nil, err
	}
	blocked, err := s.store.ListBlocked(ctx, personnelID, from, to)
	if err != nil {
		return nil, err
	}
	special, err := s.store.ListSpecial(ctx, personnelID, from, to)
	if err != nil {
		return nil, err
	}
	return &models.PersonnelAvailability{Weekly: weekly, Blocked: blocked, Special: special}, nil
}

// SetWeekly upserts the record for one day of the week. Start and end
// must be given together; omitting both opens the whole day.
func (s *AvailabilityService) SetWeekly(ctx context.Context, personnelID uuid.UUID, req models.UpsertWeeklyRequest) (*models.WeeklyAvailability, error) {
	if req.DayOfWeek == nil || *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
		return nil, NewValidationError("day_of_week must be between 0 and 6")
	}
	if (req.StartTime == nil) != (req.EndTime == nil) {
		return nil, NewValidationError("start_time and end_time must be given together")
	}

	w := &models.WeeklyAvailability{
		PersonnelID: personnelID,
		DayOfWeek:   *req.DayOfWeek,
		IsAvailable: req.IsAvailable,
	}
	if req.StartTime != nil {
		start, err := models.ParseTimeOfDay(*req.StartTime)
		if err != nil {
			return nil, NewValidationError("%v", err)
		}
		end, err := models.ParseTimeOfDay(*req.EndTime)
		if err != nil {
			return nil, NewValidationError("%v", err)
		}
		if start == end {
			return nil, NewValidationError("start_time and end_time must differ")
		}
		w.StartTime = &start
		w.EndTime = &end
	}

	if err := s.store.UpsertWeekly(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// BlockDate adds a hard exclusion for a date
func (s *AvailabilityService) BlockDate(ctx context.Context, personnelID uuid.UUID, req models.BlockDateRequest) (*models.BlockedDate, error) {
	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	b := &models.BlockedDate{PersonnelID: personnelID, Date: date, Reason: req.Reason}
	if err := s.store.AddBlocked(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// UnblockDate removes a blocked date
func (s *AvailabilityService) UnblockDate(ctx context.Context, personnelID uuid.UUID, date string) error {
	d, err := s.parseDate(date)
	if err != nil {
		return err
	}
	removed, err := s.store.RemoveBlocked(ctx, personnelID, d)
	if err != nil {
		return err
	}
	if !removed {
		return &EngineError{Kind: KindNotFound, Message: fmt.Sprintf("no blocked date on %s", date)}
	}
	return nil
}

// SetSpecial upserts a date-specific override window
func (s *AvailabilityService) SetSpecial(ctx context.Context, personnelID uuid.UUID, req models.UpsertSpecialRequest) (*models.SpecialAvailability, error) {
	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	start, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, NewValidationError("%v", err)
	}
	end, err := models.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, NewValidationError("%v", err)
	}
	if start == end {
		return nil, NewValidationError("start_time and end_time must differ")
	}

	sa := &models.SpecialAvailability{PersonnelID: personnelID, Date: date, StartTime: start, EndTime: end}
	if err := s.store.UpsertSpecial(ctx, sa); err != nil {
		return nil, err
	}
	return sa, nil
}

// RemoveSpecial drops the override for a date
func (s *AvailabilityService) RemoveSpecial(ctx context.Context, personnelID uuid.UUID, date string) error {
	d, err := s.parseDate(date)
	if err != nil {
		return err
	}
	removed, err := s.store.RemoveSpecial(ctx, personnelID, d)
	if err != nil {
		return err
	}
	if !removed {
		return &EngineError{Kind: KindNotFound, Message: fmt.Sprintf("no special availability on %s", date)}
	}
	return nil
}

func (s *AvailabilityService) parseDate(date string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return time.Time{}, NewValidationError("invalid date %q, expected YYYY-MM-DD", date)
	}
	return d, nil
}

// ============================================================================
// UPCOMING WINDOWS
// ============================================================================

// UpcomingWindow is one concrete availability window on a date
type UpcomingWindow struct {
	Date   string           `json:"date"`
	Start  models.TimeOfDay `json:"start"`
	End    models.TimeOfDay `json:"end"`
	Source string           `json:"source"` // weekly or special
}

var rruleWeekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// UpcomingWindows expands the weekly pattern over [from, from+days) and
// applies blocked dates and special overrides on top
func (s *AvailabilityService) UpcomingWindows(ctx context.Context, personnelID uuid.UUID, from time.Time, days int) ([]UpcomingWindow, error) {
	if days <= 0 || days > 90 {
		return nil, NewValidationError("days must be between 1 and 90")
	}
	local := from.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	until := start.AddDate(0, 0, days-1)

	weekly, err := s.store.ListWeekly(ctx, personnelID)
	if err != nil {
		return nil, err
	}
	blocked, err := s.store.ListBlocked(ctx, personnelID, start, until)
	if err != nil {
		return nil, err
	}
	special, err := s.store.ListSpecial(ctx, personnelID, start, until)
	if err != nil {
		return nil, err
	}

	blockedDays := make(map[string]bool, len(blocked))
	for _, b := range blocked {
		blockedDays[b.Date.Format("2006-01-02")] = true
	}
	specialDays := make(map[string]*models.SpecialAvailability, len(special))
	for _, sp := range special {
		specialDays[sp.Date.Format("2006-01-02")] = sp
	}

	var windows []UpcomingWindow
	for _, w := range weekly {
		if !w.IsAvailable || w.DayOfWeek < 0 || w.DayOfWeek > 6 {
			continue
		}
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:      rrule.WEEKLY,
			Byweekday: []rrule.Weekday{rruleWeekdays[w.DayOfWeek]},
			Dtstart:   start,
			Until:     until,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build weekly rule: %w", err)
		}

		startTime, endTime := models.TimeOfDay("00:00"), models.TimeOfDay("23:59")
		if window := w.Window(); window != nil {
			startTime, endTime = window.Start, window.End
		}
		for _, occurrence := range rule.All() {
			key := occurrence.Format("2006-01-02")
			if blockedDays[key] || specialDays[key] != nil {
				continue
			}
			windows = append(windows, UpcomingWindow{Date: key, Start: startTime, End: endTime, Source: "weekly"})
		}
	}

	for key, sp := range specialDays {
		if blockedDays[key] {
			continue
		}
		windows = append(windows, UpcomingWindow{Date: key, Start: sp.StartTime, End: sp.EndTime, Source: "special"})
	}

	sort.Slice(windows, func(i, j int) bool {
		if windows[i].Date != windows[j].Date {
			return windows[i].Date < windows[j].Date
		}
		return windows[i].Start.Minutes() < windows[j].Start.Minutes()
	})
	return windows, nil
}
