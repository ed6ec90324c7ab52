package services

import (
	"context"
	"testing"
	"time"

	"github.com/shieldforce/guard-dispatch/internal/config"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPenaltyFor(t *testing.T) {
	tiers := config.DefaultPolicy().CancellationTiers

	cases := []struct {
		hours   float64
		penalty float64
	}{
		{100, 0},
		{48, 0},
		{47.99, 5},
		{24, 5},
		{23.99, 10},
		{20, 10},
		{12, 10},
		{11.5, 15},
		{6, 15},
		{5, 20},
		{0, 20},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.penalty, PenaltyFor(tiers, tc.hours), "hours=%v", tc.hours)
	}

	assert.Equal(t, 0.0, PenaltyFor(nil, 3))
}

func personnelActor(p *models.Personnel) models.Actor {
	return models.Actor{UserID: p.UserID, Roles: []string{models.RolePersonnel}}
}

func TestCancellationService_PersonnelPenaltyByNotice(t *testing.T) {
	cases := []struct {
		name    string
		notice  time.Duration
		penalty float64
	}{
		{"five hours", 5 * time.Hour, 20},
		{"twenty hours", 20 * time.Hour, 10},
		{"exactly a day", 24 * time.Hour, 5},
		{"fifty hours", 50 * time.Hour, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t)
			b := e.addBooking(nil, nil)
			guard := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 70 })
			shift := e.addShift(b, models.ShiftStatusAccepted, &guard.ID, e.now.Add(tc.notice))

			res, err := e.cancellation.CancelShift(context.Background(), CancelRequest{
				ShiftID:     shift.ID,
				CancelledBy: models.CancelledByPersonnel,
				Reason:      "sick",
				Actor:       personnelActor(guard),
			})
			require.NoError(t, err)
			require.True(t, res.Success, "%+v", res.Error)

			assert.Equal(t, tc.penalty, res.Penalty)
			assert.Equal(t, 70-tc.penalty, e.personnel.score(guard.ID))
			assert.Equal(t, models.ShiftStatusCancelled, e.shifts.get(shift.ID).Status)
			if tc.penalty > 0 {
				require.Len(t, e.ledger.changes(), 1)
				assert.Equal(t, models.ScoreReasonCancellation, e.ledger.changes()[0].Reason)
			} else {
				assert.Empty(t, e.ledger.changes())
			}
		})
	}
}

func TestCancellationService_HoursNoticeOverride(t *testing.T) {
	e := newTestEngine(t)
	b := e.addBooking(nil, nil)
	guard := e.addGuard(nil)
	shift := e.addShift(b, models.ShiftStatusAccepted, &guard.ID, e.now.Add(72*time.Hour))

	res, err := e.cancellation.CancelShift(context.Background(), CancelRequest{
		ShiftID:             shift.ID,
		CancelledBy:         models.CancelledByPersonnel,
		HoursNoticeOverride: ptr(8.0),
		Actor:               personnelActor(guard),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 15.0, res.Penalty)
	assert.Equal(t, 8.0, res.HoursNotice)
}

func TestCancellationService_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("final shifts are invalid state", func(t *testing.T) {
		for _, status := range []models.ShiftStatus{models.ShiftStatusCheckedOut, models.ShiftStatusCancelled, models.ShiftStatusNoShow} {
			e := newTestEngine(t)
			b := e.addBooking(nil, nil)
			guard := e.addGuard(nil)
			shift := e.addShift(b, status, &guard.ID, e.now.Add(time.Hour))

			res, err := e.cancellation.CancelShift(ctx, CancelRequest{ShiftID: shift.ID, CancelledBy: models.CancelledByVenue, Actor: models.SystemActor})
			require.NoError(t, err)
			require.False(t, res.Success)
			assert.Equal(t, KindInvalidState, res.Error.Kind, string(status))
		}
	})

	t.Run("guard cannot cancel a started shift", func(t *testing.T) {
		e := newTestEngine(t)
		b := e.addBooking(nil, nil)
		guard := e.addGuard(nil)
		shift := e.addShift(b, models.ShiftStatusAccepted, &guard.ID, e.now.Add(-5*time.Minute))

		res, err := e.cancellation.CancelShift(ctx, CancelRequest{ShiftID: shift.ID, CancelledBy: models.CancelledByPersonnel, Actor: personnelActor(guard)})
		require.NoError(t, err)
		require.False(t, res.Success)
		assert.Equal(t, KindValidation, res.Error.Kind)
		assert.Equal(t, models.ShiftStatusAccepted, e.shifts.get(shift.ID).Status)
	})

	t.Run("unknown canceller", func(t *testing.T) {
		e := newTestEngine(t)
		res, err := e.cancellation.CancelShift(ctx, CancelRequest{CancelledBy: "promoter", Actor: models.SystemActor})
		require.NoError(t, err)
		assert.Equal(t, KindValidation, res.Error.Kind)
	})

	t.Run("another guard cannot cancel", func(t *testing.T) {
		e := newTestEngine(t)
		b := e.addBooking(nil, nil)
		guard := e.addGuard(nil)
		other := e.addGuard(nil)
		shift := e.addShift(b, models.ShiftStatusAccepted, &guard.ID, e.now.Add(10*time.Hour))

		res, err := e.cancellation.CancelShift(ctx, CancelRequest{ShiftID: shift.ID, CancelledBy: models.CancelledByPersonnel, Actor: personnelActor(other)})
		require.NoError(t, err)
		assert.Equal(t, KindUnauthorized, res.Error.Kind)
	})

	t.Run("venue must own the booking", func(t *testing.T) {
		e := newTestEngine(t)
		b := e.addBooking(nil, nil)
		other := e.addBooking(nil, nil)
		guard := e.addGuard(nil)
		shift := e.addShift(b, models.ShiftStatusAccepted, &guard.ID, e.now.Add(10*time.Hour))

		res, err := e.cancellation.CancelShift(ctx, CancelRequest{
			ShiftID:     shift.ID,
			CancelledBy: models.CancelledByVenue,
			Actor:       models.Actor{UserID: other.VenueUserID, Roles: []string{models.RoleVenue}},
		})
		require.NoError(t, err)
		assert.Equal(t, KindUnauthorized, res.Error.Kind)
	})
}

func TestCancellationService_GuardCancellationBackfills(t *testing.T) {
	e := newTestEngine(t)
	b := e.addBooking(nil, nil)
	leaving := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 99 })
	standIn := e.addGuard(func(p *models.Personnel) { p.ShieldScore = 60 })
	shift := e.addShift(b, models.ShiftStatusAccepted, &leaving.ID, e.now.Add(30*time.Hour))

	res, err := e.cancellation.CancelShift(context.Background(), CancelRequest{
		ShiftID:     shift.ID,
		CancelledBy: models.CancelledByPersonnel,
		Actor:       personnelActor(leaving),
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.ReopenedSlot)
	require.NotNil(t, res.Backfill)
	assert.Equal(t, 1, res.Backfill.Assigned)

	slot := e.shifts.get(*res.ReopenedSlot)
	require.NotNil(t, slot)
	assert.Equal(t, models.ShiftStatusPending, slot.Status)
	assert.True(t, slot.IsAssignedTo(standIn.ID))

	assert.Contains(t, e.notifier.kindsFor(b.VenueUserID), models.NotificationShiftCancelled)
	assert.Contains(t, e.notifier.kindsFor(*b.AgencyUserID), models.NotificationShiftCancelled)
}

func TestCancellationService_VenueCancellationDoesNotCloneSlot(t *testing.T) {
	e := newTestEngine(t)
	b := e.addBooking(nil, nil)
	guard := e.addGuard(nil)
	shift := e.addShift(b, models.ShiftStatusAccepted, &guard.ID, e.now.Add(30*time.Hour))

	res, err := e.cancellation.CancelShift(context.Background(), CancelRequest{
		ShiftID:     shift.ID,
		CancelledBy: models.CancelledByVenue,
		Reason:      "event postponed",
		Actor:       models.Actor{UserID: b.VenueUserID, Roles: []string{models.RoleVenue}},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Nil(t, res.ReopenedSlot)
	assert.Equal(t, 0.0, res.Penalty)
	require.NotNil(t, res.Backfill)
	assert.Empty(t, res.Backfill.Shifts)

	stored := e.shifts.get(shift.ID)
	require.NotNil(t, stored.CancelledByRole)
	assert.Equal(t, "venue", *stored.CancelledByRole)
	assert.Equal(t, "event postponed", *stored.CancelReason)
	assert.Contains(t, e.notifier.kindsFor(guard.UserID), models.NotificationShiftCancelled)
	assert.NotContains(t, e.notifier.kindsFor(b.VenueUserID), models.NotificationShiftCancelled)
}
