package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoAssign_MoreShiftsThanCandidates(t *testing.T) {
	e := newTestEngine(t)
	b := e.addBooking(nil, nil)
	first := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 90 })
	second := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 70 })

	start := e.now.Add(48 * time.Hour)
	shifts := []*models.Shift{
		e.addShift(b, models.ShiftStatusPending, nil, start),
		e.addShift(b, models.ShiftStatusPending, nil, start),
		e.addShift(b, models.ShiftStatusPending, nil, start),
	}

	res, err := e.planner.AutoAssignShifts(context.Background(), b.ID, AutoAssignOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Assigned)
	assert.Equal(t, 1, res.Unassigned)
	require.Len(t, res.Shifts, 3)

	assert.True(t, res.Shifts[0].Assigned)
	assert.Equal(t, first.ID, *res.Shifts[0].PersonnelID)
	assert.True(t, res.Shifts[1].Assigned)
	assert.Equal(t, second.ID, *res.Shifts[1].PersonnelID)
	assert.False(t, res.Shifts[2].Assigned)
	assert.Equal(t, ReasonNoCandidates, res.Shifts[2].Reason)
	assert.Nil(t, res.Shifts[2].PersonnelID)

	assert.True(t, e.shifts.get(shifts[0].ID).IsAssignedTo(first.ID))
	assert.True(t, e.shifts.get(shifts[1].ID).IsAssignedTo(second.ID))
	assert.True(t, e.shifts.get(shifts[2].ID).IsUnfilled())
	for _, s := range shifts {
		assert.Equal(t, models.ShiftStatusPending, e.shifts.get(s.ID).Status)
	}

	assert.Equal(t, 2, e.notifier.count(models.NotificationShiftOffered))
}

func TestAutoAssign_NothingToFill(t *testing.T) {
	e := newTestEngine(t)
	b := e.addBooking(nil, nil)
	guard := e.addGuard(nil)
	e.addShift(b, models.ShiftStatusAccepted, &guard.ID, e.now.Add(time.Hour))

	res, err := e.planner.AutoAssignShifts(context.Background(), b.ID, AutoAssignOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Shifts)
	assert.Zero(t, res.Assigned)
}

func TestAutoAssign_UnknownBooking(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.planner.AutoAssignShifts(context.Background(), uuid.New(), AutoAssignOptions{})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestAutoAssign_HardBlocksExcludeCandidates(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	b := e.addBooking(nil, nil)
	other := e.addBooking(nil, nil)
	start := e.now.Add(48 * time.Hour)

	blocked := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 100 })
	busy := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 95 })
	e.addGuard(func(p *models.Personnel) {
		p.ShieldScore = 99
		p.IsActive = nil
	})
	free := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 40 })

	require.NoError(t, e.availability.AddBlocked(ctx, &models.BlockedDate{PersonnelID: blocked.ID, Date: start}))
	e.addShift(other, models.ShiftStatusAccepted, &busy.ID, start.Add(2*time.Hour))

	shift := e.addShift(b, models.ShiftStatusPending, nil, start)

	res, err := e.planner.AutoAssignShifts(ctx, b.ID, AutoAssignOptions{})
	require.NoError(t, err)
	require.Len(t, res.Shifts, 1)
	assert.Equal(t, 1, res.Shifts[0].CandidatesConsidered)
	assert.Equal(t, free.ID, *res.Shifts[0].PersonnelID)
	assert.True(t, e.shifts.get(shift.ID).IsAssignedTo(free.ID))
}

func TestAutoAssign_SoftAvailabilityStillEligible(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	b := e.addBooking(nil, nil)
	start := e.now.Add(48 * time.Hour)

	guard := e.addGuard(nil)
	_, err := e.availSvc.SetWeekly(ctx, guard.ID, models.UpsertWeeklyRequest{
		DayOfWeek:   ptr(int(start.Weekday())),
		IsAvailable: false,
	})
	require.NoError(t, err)

	e.addShift(b, models.ShiftStatusPending, nil, start)

	res, err := e.planner.AutoAssignShifts(ctx, b.ID, AutoAssignOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Assigned)
}

func TestAutoAssign_Options(t *testing.T) {
	ctx := context.Background()

	t.Run("min score filters everyone", func(t *testing.T) {
		e := newTestEngine(t)
		b := e.addBooking(nil, nil)
		e.addGuard(nil)
		e.addShift(b, models.ShiftStatusPending, nil, e.now.Add(48*time.Hour))

		res, err := e.planner.AutoAssignShifts(ctx, b.ID, AutoAssignOptions{MinScore: 95})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Assigned)
		assert.Equal(t, ReasonNoCandidates, res.Shifts[0].Reason)
	})

	t.Run("excluded guards are skipped", func(t *testing.T) {
		e := newTestEngine(t)
		b := e.addBooking(nil, nil)
		top := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 100 })
		rest := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 10 })
		e.addShift(b, models.ShiftStatusPending, nil, e.now.Add(48*time.Hour))

		res, err := e.planner.AutoAssignShifts(ctx, b.ID, AutoAssignOptions{ExcludedIDs: []uuid.UUID{top.ID}})
		require.NoError(t, err)
		assert.Equal(t, rest.ID, *res.Shifts[0].PersonnelID)
	})

	t.Run("preferred guard gets the bonus", func(t *testing.T) {
		e := newTestEngine(t)
		b := e.addBooking(nil, nil)
		e.addGuard(func(p *models.Personnel) { p.ShieldScore = 100 })
		favourite := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 60 })
		e.addShift(b, models.ShiftStatusPending, nil, e.now.Add(48*time.Hour))

		res, err := e.planner.AutoAssignShifts(ctx, b.ID, AutoAssignOptions{PreferredIDs: []uuid.UUID{favourite.ID}})
		require.NoError(t, err)
		assert.Equal(t, favourite.ID, *res.Shifts[0].PersonnelID)
		assert.Equal(t, 20.0, res.Shifts[0].Score.PreferredBonus)
	})
}

func TestAutoAssign_TieBreaks(t *testing.T) {
	ctx := context.Background()

	t.Run("closer guard wins an equal score", func(t *testing.T) {
		e := newTestEngine(t)
		b := e.addBooking(ptr(0.0), ptr(0.0))
		// Both are beyond their travel range so distance scores 0 for each
		e.addGuard(func(p *models.Personnel) {
			p.Latitude, p.Longitude = ptr(latitudeKmNorth(40)), ptr(0.0)
			p.MaxTravelDistanceKm = ptr(30.0)
		})
		nearer := e.addGuard(func(p *models.Personnel) {
			p.Latitude, p.Longitude = ptr(latitudeKmNorth(35)), ptr(0.0)
			p.MaxTravelDistanceKm = ptr(30.0)
		})
		e.addShift(b, models.ShiftStatusPending, nil, e.now.Add(48*time.Hour))

		res, err := e.planner.AutoAssignShifts(ctx, b.ID, AutoAssignOptions{})
		require.NoError(t, err)
		assert.Equal(t, nearer.ID, *res.Shifts[0].PersonnelID)
	})

	t.Run("more reliable guard wins an equal score and distance", func(t *testing.T) {
		e := newTestEngine(t)
		b := e.addBooking(nil, nil)
		// 80*.25 + 50*.20 == 60*.25 + 75*.20
		e.addGuard(func(p *models.Personnel) {
			p.ShieldScore = 80
			p.ReliabilityScore = ptr(50.0)
		})
		reliable := e.addGuard(func(p *models.Personnel) {
			p.ShieldScore = 60
			p.ReliabilityScore = ptr(75.0)
		})
		e.addShift(b, models.ShiftStatusPending, nil, e.now.Add(48*time.Hour))

		res, err := e.planner.AutoAssignShifts(ctx, b.ID, AutoAssignOptions{})
		require.NoError(t, err)
		assert.Equal(t, reliable.ID, *res.Shifts[0].PersonnelID)
		assert.Equal(t, 62.5, res.Shifts[0].Score.Total)
	})
}

func TestAutoAssign_RejectsNegativeWeights(t *testing.T) {
	e := newTestEngine(t)
	b := e.addBooking(nil, nil)
	e.addShift(b, models.ShiftStatusPending, nil, b.EventStart)
	e.addGuard(nil)

	_, err := e.planner.AutoAssignShifts(context.Background(), b.ID, AutoAssignOptions{
		Weights: &config.ScoreWeights{ShieldScore: 2, Reliability: -1},
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
	assert.Contains(t, err.Error(), "weights.reliability")

	_, err = e.planner.AutoAssignShifts(context.Background(), b.ID, AutoAssignOptions{MinScore: -5})
	assert.True(t, IsKind(err, KindValidation))
}
