package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/database"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// ============================================================================
// SHIFTS
// ============================================================================

type fakeShiftStore struct {
	mu     sync.Mutex
	shifts map[uuid.UUID]*models.Shift
	seq    map[uuid.UUID]int
	casErr error
}

func newFakeShiftStore() *fakeShiftStore {
	return &fakeShiftStore{shifts: make(map[uuid.UUID]*models.Shift), seq: make(map[uuid.UUID]int)}
}

func cloneShift(s *models.Shift) *models.Shift {
	c := *s
	return &c
}

func (f *fakeShiftStore) put(s *models.Shift) *models.Shift {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = models.ShiftStatusPending
	}
	if s.DispatcherStatus == "" {
		s.DispatcherStatus = models.DispatcherStatusNone
	}
	if _, ok := f.seq[s.ID]; !ok {
		f.seq[s.ID] = len(f.seq)
	}
	f.shifts[s.ID] = cloneShift(s)
	return s
}

func (f *fakeShiftStore) get(id uuid.UUID) *models.Shift {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.shifts[id]; ok {
		return cloneShift(s)
	}
	return nil
}

func (f *fakeShiftStore) all() []*models.Shift {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Shift, 0, len(f.shifts))
	for _, s := range f.shifts {
		out = append(out, cloneShift(s))
	}
	sort.Slice(out, func(i, j int) bool { return f.seq[out[i].ID] < f.seq[out[j].ID] })
	return out
}

func (f *fakeShiftStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	return f.get(id), nil
}

func (f *fakeShiftStore) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.Shift, error) {
	var out []*models.Shift
	for _, s := range f.all() {
		if s.BookingID == bookingID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeShiftStore) ListUnfilledByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.Shift, error) {
	var out []*models.Shift
	for _, s := range f.all() {
		if s.BookingID == bookingID && s.IsUnfilled() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeShiftStore) ListOverlapping(ctx context.Context, personnelID uuid.UUID, start, end time.Time) ([]*models.Shift, error) {
	var out []*models.Shift
	for _, s := range f.all() {
		if s.IsAssignedTo(personnelID) && !s.Status.IsTerminal() && s.Overlaps(start, end) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeShiftStore) ListBusyPersonnel(ctx context.Context, personnelIDs []uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	want := make(map[uuid.UUID]bool, len(personnelIDs))
	for _, id := range personnelIDs {
		want[id] = true
	}
	var out []uuid.UUID
	for _, s := range f.all() {
		if s.PersonnelID == nil || !want[*s.PersonnelID] {
			continue
		}
		if s.Status != models.ShiftStatusAccepted && s.Status != models.ShiftStatusCheckedIn {
			continue
		}
		if !at.Before(s.ScheduledStart) && at.Before(s.ScheduledEnd) {
			out = append(out, *s.PersonnelID)
		}
	}
	return out, nil
}

func (f *fakeShiftStore) ListAccepted(ctx context.Context, startsBefore time.Time, limit int) ([]*models.Shift, error) {
	var out []*models.Shift
	for _, s := range f.all() {
		if s.Status == models.ShiftStatusAccepted && s.DispatcherStatus == models.DispatcherStatusNone &&
			!s.ScheduledStart.After(startsBefore) {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeShiftStore) Create(ctx context.Context, shift *models.Shift) error {
	f.put(shift)
	return nil
}

func (f *fakeShiftStore) CompareAndSwap(ctx context.Context, id uuid.UUID, pred models.ShiftPredicate, upd models.ShiftUpdate) (*models.Shift, bool, error) {
	if upd.TouchesPersonnel() && upd.Status == nil {
		return nil, false, database.ErrPersonnelWithoutStatus
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.casErr != nil {
		return nil, false, f.casErr
	}

	s, ok := f.shifts[id]
	if !ok || !matches(s, pred) {
		return nil, false, nil
	}
	apply(s, upd)
	return cloneShift(s), true, nil
}

func matches(s *models.Shift, pred models.ShiftPredicate) bool {
	if len(pred.Statuses) > 0 {
		found := false
		for _, st := range pred.Statuses {
			found = found || s.Status == st
		}
		if !found {
			return false
		}
	}
	if len(pred.DispatcherStatuses) > 0 {
		found := false
		for _, st := range pred.DispatcherStatuses {
			found = found || s.DispatcherStatus == st
		}
		if !found {
			return false
		}
	}
	if pred.PersonnelID != nil && !s.IsAssignedTo(*pred.PersonnelID) {
		return false
	}
	if pred.RequireUnassigned && s.PersonnelID != nil {
		return false
	}
	return true
}

func apply(s *models.Shift, u models.ShiftUpdate) {
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.DispatcherStatus != nil {
		s.DispatcherStatus = *u.DispatcherStatus
	}
	if u.PersonnelID != nil {
		id := *u.PersonnelID
		s.PersonnelID = &id
	}
	if u.OriginalPersonnelID != nil {
		id := *u.OriginalPersonnelID
		s.OriginalPersonnelID = &id
	}
	if u.IsUrgent != nil {
		s.IsUrgent = *u.IsUrgent
	}
	if u.SurgeRate != nil {
		s.SurgeRate = u.SurgeRate
	}
	if u.AcceptedAt != nil {
		s.AcceptedAt = u.AcceptedAt
	}
	if u.ActualStart != nil {
		s.ActualStart = u.ActualStart
	}
	if u.ActualEnd != nil {
		s.ActualEnd = u.ActualEnd
	}
	if u.CheckInLat != nil {
		s.CheckInLat = u.CheckInLat
	}
	if u.CheckInLng != nil {
		s.CheckInLng = u.CheckInLng
	}
	if u.CheckOutLat != nil {
		s.CheckOutLat = u.CheckOutLat
	}
	if u.CheckOutLng != nil {
		s.CheckOutLng = u.CheckOutLng
	}
	if u.HoursWorked != nil {
		s.HoursWorked = u.HoursWorked
	}
	if u.TotalPay != nil {
		s.TotalPay = u.TotalPay
	}
	if u.CancelledAt != nil {
		s.CancelledAt = u.CancelledAt
	}
	if u.CancelReason != nil {
		s.CancelReason = u.CancelReason
	}
	if u.CancelledByRole != nil {
		s.CancelledByRole = u.CancelledByRole
	}
	if u.NoShowAt != nil {
		s.NoShowAt = u.NoShowAt
	}
	if u.NoShowNotes != nil {
		s.NoShowNotes = u.NoShowNotes
	}
}

// ============================================================================
// BOOKINGS, PERSONNEL, AVAILABILITY
// ============================================================================

type fakeBookingStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*models.Booking
	shifts   *fakeShiftStore
}

func (f *fakeBookingStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		c := *b
		return &c, nil
	}
	return nil, nil
}

func (f *fakeBookingStore) CreateWithShifts(ctx context.Context, booking *models.Booking, shifts []*models.Shift) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	f.mu.Lock()
	c := *booking
	f.bookings[booking.ID] = &c
	f.mu.Unlock()
	for _, s := range shifts {
		s.BookingID = booking.ID
		if err := f.shifts.Create(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

type fakePersonnelStore struct {
	mu        sync.Mutex
	personnel map[uuid.UUID]*models.Personnel
	order     []uuid.UUID
}

func (f *fakePersonnelStore) add(p *models.Personnel) *models.Personnel {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.UserID == uuid.Nil {
		p.UserID = uuid.New()
	}
	f.personnel[p.ID] = p
	f.order = append(f.order, p.ID)
	return p
}

func (f *fakePersonnelStore) score(id uuid.UUID) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.personnel[id].ShieldScore
}

func (f *fakePersonnelStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Personnel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.personnel[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (f *fakePersonnelStore) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Personnel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.personnel {
		if p.UserID == userID {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakePersonnelStore) ListActive(ctx context.Context, excluded []uuid.UUID) ([]*models.Personnel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	skip := make(map[uuid.UUID]bool)
	for _, id := range excluded {
		skip[id] = true
	}
	var out []*models.Personnel
	for _, id := range f.order {
		p := f.personnel[id]
		if p.Active() && !skip[id] {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakePersonnelStore) ListStandby(ctx context.Context, exclude *uuid.UUID, limit int) ([]*models.Personnel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Personnel
	for _, id := range f.order {
		p := f.personnel[id]
		if !p.IsStandby || !p.IsAvailable || !p.Active() {
			continue
		}
		if exclude != nil && *exclude == id {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ShieldScore > out[j].ShieldScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeAvailabilityStore struct {
	weekly  map[uuid.UUID]map[int]*models.WeeklyAvailability
	blocked map[uuid.UUID]map[string]*models.BlockedDate
	special map[uuid.UUID]map[string]*models.SpecialAvailability
}

func newFakeAvailabilityStore() *fakeAvailabilityStore {
	return &fakeAvailabilityStore{
		weekly:  make(map[uuid.UUID]map[int]*models.WeeklyAvailability),
		blocked: make(map[uuid.UUID]map[string]*models.BlockedDate),
		special: make(map[uuid.UUID]map[string]*models.SpecialAvailability),
	}
}

func day(t time.Time) string { return t.Format("2006-01-02") }

func (f *fakeAvailabilityStore) GetWeekly(ctx context.Context, personnelID uuid.UUID, dayOfWeek int) (*models.WeeklyAvailability, error) {
	return f.weekly[personnelID][dayOfWeek], nil
}

func (f *fakeAvailabilityStore) ListWeekly(ctx context.Context, personnelID uuid.UUID) ([]*models.WeeklyAvailability, error) {
	var out []*models.WeeklyAvailability
	for d := 0; d < 7; d++ {
		if w := f.weekly[personnelID][d]; w != nil {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeAvailabilityStore) UpsertWeekly(ctx context.Context, w *models.WeeklyAvailability) error {
	if f.weekly[w.PersonnelID] == nil {
		f.weekly[w.PersonnelID] = make(map[int]*models.WeeklyAvailability)
	}
	f.weekly[w.PersonnelID][w.DayOfWeek] = w
	return nil
}

func (f *fakeAvailabilityStore) GetBlocked(ctx context.Context, personnelID uuid.UUID, date time.Time) (*models.BlockedDate, error) {
	return f.blocked[personnelID][day(date)], nil
}

func (f *fakeAvailabilityStore) ListBlocked(ctx context.Context, personnelID uuid.UUID, from, to time.Time) ([]*models.BlockedDate, error) {
	var out []*models.BlockedDate
	for _, b := range f.blocked[personnelID] {
		if day(b.Date) >= day(from) && day(b.Date) <= day(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeAvailabilityStore) AddBlocked(ctx context.Context, b *models.BlockedDate) error {
	if f.blocked[b.PersonnelID] == nil {
		f.blocked[b.PersonnelID] = make(map[string]*models.BlockedDate)
	}
	f.blocked[b.PersonnelID][day(b.Date)] = b
	return nil
}

func (f *fakeAvailabilityStore) RemoveBlocked(ctx context.Context, personnelID uuid.UUID, date time.Time) (bool, error) {
	if _, ok := f.blocked[personnelID][day(date)]; !ok {
		return false, nil
	}
	delete(f.blocked[personnelID], day(date))
	return true, nil
}

func (f *fakeAvailabilityStore) GetSpecial(ctx context.Context, personnelID uuid.UUID, date time.Time) (*models.SpecialAvailability, error) {
	return f.special[personnelID][day(date)], nil
}

func (f *fakeAvailabilityStore) ListSpecial(ctx context.Context, personnelID uuid.UUID, from, to time.Time) ([]*models.SpecialAvailability, error) {
	var out []*models.SpecialAvailability
	for _, s := range f.special[personnelID] {
		if day(s.Date) >= day(from) && day(s.Date) <= day(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAvailabilityStore) UpsertSpecial(ctx context.Context, s *models.SpecialAvailability) error {
	if f.special[s.PersonnelID] == nil {
		f.special[s.PersonnelID] = make(map[string]*models.SpecialAvailability)
	}
	f.special[s.PersonnelID][day(s.Date)] = s
	return nil
}

func (f *fakeAvailabilityStore) RemoveSpecial(ctx context.Context, personnelID uuid.UUID, date time.Time) (bool, error) {
	if _, ok := f.special[personnelID][day(date)]; !ok {
		return false, nil
	}
	delete(f.special[personnelID], day(date))
	return true, nil
}

// ============================================================================
// LEDGER, NOTIFICATIONS, PAYMENTS, OFFERS, REVIEWS
// ============================================================================

type fakeLedger struct {
	mu        sync.Mutex
	personnel *fakePersonnelStore
	keys      map[string]bool
	history   []models.ScoreChange
	entries   []*models.ShieldScoreHistory
	lastLimit int
}

func (f *fakeLedger) ApplyScoreChange(ctx context.Context, change models.ScoreChange) (*models.ScoreChangeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.personnel.mu.Lock()
	defer f.personnel.mu.Unlock()
	p := f.personnel.personnel[change.PersonnelID]
	before := p.ShieldScore

	key := change.PersonnelID.String() + "/" + change.IdempotencyKey
	if f.keys[key] {
		return &models.ScoreChangeResult{Applied: false, ScoreBefore: before, ScoreAfter: before}, nil
	}
	f.keys[key] = true
	f.history = append(f.history, change)

	after := round2(models.ClampScore(before + change.Delta))
	p.ShieldScore = after
	f.entries = append(f.entries, &models.ShieldScoreHistory{
		ID:             uuid.New(),
		PersonnelID:    change.PersonnelID,
		ShiftID:        change.ShiftID,
		Reason:         change.Reason,
		Delta:          change.Delta,
		ScoreBefore:    before,
		ScoreAfter:     after,
		IdempotencyKey: change.IdempotencyKey,
	})
	return &models.ScoreChangeResult{Applied: true, ScoreBefore: before, ScoreAfter: after}, nil
}

func (f *fakeLedger) ListHistory(ctx context.Context, personnelID uuid.UUID, limit int) ([]*models.ShieldScoreHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	out := []*models.ShieldScoreHistory{}
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.entries[i].PersonnelID == personnelID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeLedger) changes() []models.ScoreChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ScoreChange(nil), f.history...)
}

type sentNotification struct {
	UserID  uuid.UUID
	Title   string
	Kind    models.NotificationKind
	Payload models.NotificationPayload
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Notify(ctx context.Context, userID uuid.UUID, title, body string, payload models.NotificationPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{UserID: userID, Title: title, Kind: payload.Kind(), Payload: payload})
}

func (f *fakeNotifier) kindsFor(userID uuid.UUID) []models.NotificationKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []models.NotificationKind
	for _, n := range f.sent {
		if n.UserID == userID {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}

func (f *fakeNotifier) count(kind models.NotificationKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type fakePayments struct {
	mu     sync.Mutex
	events []models.ShiftCompletedEvent
}

func (f *fakePayments) PublishShiftCompleted(ctx context.Context, event models.ShiftCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeOffers struct {
	mu      sync.Mutex
	offers  map[uuid.UUID]map[uuid.UUID]bool
	welfare map[uuid.UUID]bool
	down    bool
}

func (f *fakeOffers) RecordOffer(ctx context.Context, shiftID uuid.UUID, personnelIDs []uuid.UUID, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[uuid.UUID]bool, len(personnelIDs))
	for _, id := range personnelIDs {
		set[id] = true
	}
	f.offers[shiftID] = set
	return nil
}

func (f *fakeOffers) WasOffered(ctx context.Context, shiftID, personnelID uuid.UUID) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.offers[shiftID]
	if !ok {
		return false, false, nil
	}
	return true, set[personnelID], nil
}

func (f *fakeOffers) ClearOffer(ctx context.Context, shiftID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.offers, shiftID)
	return nil
}

func (f *fakeOffers) MarkWelfareSent(ctx context.Context, shiftID uuid.UUID, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false, errors.New("registry unavailable")
	}
	if f.welfare[shiftID] {
		return false, nil
	}
	f.welfare[shiftID] = true
	return true, nil
}

type fakeReviews struct {
	byShift map[uuid.UUID]*models.ShiftReview
}

func (f *fakeReviews) Create(ctx context.Context, review *models.ShiftReview) error {
	if _, ok := f.byShift[review.ShiftID]; ok {
		return database.ErrDuplicateReview
	}
	review.ID = uuid.New()
	f.byShift[review.ShiftID] = review
	return nil
}

// ============================================================================
// ENGINE
// ============================================================================

// testEngine wires every service against in-memory fakes and a fixed clock
type testEngine struct {
	now time.Time

	shifts       *fakeShiftStore
	bookings     *fakeBookingStore
	personnel    *fakePersonnelStore
	availability *fakeAvailabilityStore
	ledger       *fakeLedger
	notifier     *fakeNotifier
	payments     *fakePayments
	offers       *fakeOffers
	reviews      *fakeReviews

	policy       config.Policy
	shiftSvc     *ShiftService
	availSvc     *AvailabilityService
	planner      *AutoAssignmentService
	cancellation *CancellationService
	dispatcher   *DispatcherService
	reviewSvc    *ReviewService
	bookingSvc   *BookingService
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	e := &testEngine{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	e.shifts = newFakeShiftStore()
	e.bookings = &fakeBookingStore{bookings: make(map[uuid.UUID]*models.Booking), shifts: e.shifts}
	e.personnel = &fakePersonnelStore{personnel: make(map[uuid.UUID]*models.Personnel)}
	e.availability = newFakeAvailabilityStore()
	e.ledger = &fakeLedger{personnel: e.personnel, keys: make(map[string]bool)}
	e.notifier = &fakeNotifier{}
	e.payments = &fakePayments{}
	e.offers = &fakeOffers{offers: make(map[uuid.UUID]map[uuid.UUID]bool), welfare: make(map[uuid.UUID]bool)}
	e.reviews = &fakeReviews{byShift: make(map[uuid.UUID]*models.ShiftReview)}
	e.policy = config.DefaultPolicy()

	logger := quietLogger()
	clock := func() time.Time { return e.now }

	scores := NewShieldScoreService(e.ledger, logger)
	e.shiftSvc = NewShiftService(e.shifts, e.bookings, e.personnel, scores, e.notifier, e.payments, e.policy, logger)
	e.shiftSvc.now = clock
	e.availSvc = NewAvailabilityService(e.availability, e.shifts, time.UTC, logger)
	e.planner = NewAutoAssignmentService(e.shifts, e.bookings, e.personnel, e.availSvc, NewScorer(e.policy), e.shiftSvc, logger)
	e.cancellation = NewCancellationService(e.shifts, e.bookings, e.personnel, e.shiftSvc, e.planner, scores, e.notifier, e.policy, logger)
	e.cancellation.now = clock

	dispatchCfg := config.DispatchConfig{
		WelfareCheckTTL:    time.Hour,
		SweepBatchSize:     100,
		ReplacementTimeout: 5 * time.Second,
		Policy:             e.policy,
	}
	e.dispatcher = NewDispatcherService(e.shifts, e.bookings, e.personnel, e.shiftSvc, e.notifier, e.offers, dispatchCfg, time.Hour, logger)
	e.dispatcher.now = clock
	e.dispatcher.runAsync = func(f func()) { f() }

	e.reviewSvc = NewReviewService(e.shifts, e.bookings, e.reviews, scores, logger)
	e.bookingSvc = NewBookingService(e.bookings, e.shifts, logger)
	return e
}

func ptr[T any](v T) *T { return &v }

func (e *testEngine) addBooking(venueLat, venueLng *float64) *models.Booking {
	b := &models.Booking{
		ID:             uuid.New(),
		VenueID:        uuid.New(),
		VenueUserID:    uuid.New(),
		AgencyUserID:   ptr(uuid.New()),
		VenueName:      "The Warehouse",
		VenueLatitude:  venueLat,
		VenueLongitude: venueLng,
		EventStart:     e.now.Add(48 * time.Hour),
		EventEnd:       e.now.Add(56 * time.Hour),
	}
	e.bookings.bookings[b.ID] = b
	return b
}

func (e *testEngine) addGuard(mutate func(p *models.Personnel)) *models.Personnel {
	p := &models.Personnel{
		FullName:    "Guard",
		ShieldScore: 80,
		IsActive:    ptr(true),
		IsAvailable: true,
		HourlyRate:  20,
	}
	if mutate != nil {
		mutate(p)
	}
	return e.personnel.add(p)
}

// addShift stores a shift on booking b starting at start for 8 hours
func (e *testEngine) addShift(b *models.Booking, status models.ShiftStatus, personnelID *uuid.UUID, start time.Time) *models.Shift {
	return e.shifts.put(&models.Shift{
		BookingID:      b.ID,
		PersonnelID:    personnelID,
		Role:           "door_supervisor",
		HourlyRate:     20,
		ScheduledStart: start,
		ScheduledEnd:   start.Add(8 * time.Hour),
		Status:         status,
		CreatedAt:      e.now,
	})
}
