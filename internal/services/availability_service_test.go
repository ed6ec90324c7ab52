package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monday is the first Monday after the test engine's clock
var monday = time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)

func setWeekly(t *testing.T, e *testEngine, p *models.Personnel, day time.Weekday, start, end string) {
	t.Helper()
	req := models.UpsertWeeklyRequest{DayOfWeek: ptr(int(day)), IsAvailable: true}
	if start != "" {
		req.StartTime, req.EndTime = ptr(start), ptr(end)
	}
	_, err := e.availSvc.SetWeekly(context.Background(), p.ID, req)
	require.NoError(t, err)
}

func TestAvailability_Precedence(t *testing.T) {
	ctx := context.Background()

	t.Run("no record", func(t *testing.T) {
		e := newTestEngine(t)
		guard := e.addGuard(nil)

		res, err := e.availSvc.Resolve(ctx, guard.ID, monday, "09:00", "17:00")
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, models.AvailabilityReasonNoRecord, res.Reason)
		assert.Equal(t, "Monday", res.DayName)
	})

	t.Run("weekly window", func(t *testing.T) {
		e := newTestEngine(t)
		guard := e.addGuard(nil)
		setWeekly(t, e, guard, time.Monday, "08:00", "18:00")

		res, err := e.availSvc.Resolve(ctx, guard.ID, monday, "09:00", "17:00")
		require.NoError(t, err)
		assert.True(t, res.Available)

		res, err = e.availSvc.Resolve(ctx, guard.ID, monday, "07:00", "17:00")
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, models.AvailabilityReasonOutsideWeekly, res.Reason)
	})

	t.Run("whole day open", func(t *testing.T) {
		e := newTestEngine(t)
		guard := e.addGuard(nil)
		setWeekly(t, e, guard, time.Monday, "", "")

		res, err := e.availSvc.Resolve(ctx, guard.ID, monday, "03:00", "04:00")
		require.NoError(t, err)
		assert.True(t, res.Available)
		assert.Nil(t, res.Window)
	})

	t.Run("day off", func(t *testing.T) {
		e := newTestEngine(t)
		guard := e.addGuard(nil)
		_, err := e.availSvc.SetWeekly(ctx, guard.ID, models.UpsertWeeklyRequest{DayOfWeek: ptr(1), IsAvailable: false})
		require.NoError(t, err)

		res, err := e.availSvc.Resolve(ctx, guard.ID, monday, "09:00", "17:00")
		require.NoError(t, err)
		assert.Equal(t, models.AvailabilityReasonDayOff, res.Reason)
	})

	t.Run("special overrides weekly", func(t *testing.T) {
		e := newTestEngine(t)
		guard := e.addGuard(nil)
		_, err := e.availSvc.SetWeekly(ctx, guard.ID, models.UpsertWeeklyRequest{DayOfWeek: ptr(1), IsAvailable: false})
		require.NoError(t, err)
		_, err = e.availSvc.SetSpecial(ctx, guard.ID, models.UpsertSpecialRequest{Date: "2026-03-16", StartTime: "10:00", EndTime: "20:00"})
		require.NoError(t, err)

		res, err := e.availSvc.Resolve(ctx, guard.ID, monday, "12:00", "18:00")
		require.NoError(t, err)
		assert.True(t, res.Available)
		require.NotNil(t, res.Window)
		assert.Equal(t, models.TimeOfDay("10:00"), res.Window.Start)

		res, err = e.availSvc.Resolve(ctx, guard.ID, monday, "09:00", "18:00")
		require.NoError(t, err)
		assert.Equal(t, models.AvailabilityReasonOutsideWindow, res.Reason)
	})

	t.Run("blocked beats everything", func(t *testing.T) {
		e := newTestEngine(t)
		guard := e.addGuard(nil)
		setWeekly(t, e, guard, time.Monday, "", "")
		_, err := e.availSvc.SetSpecial(ctx, guard.ID, models.UpsertSpecialRequest{Date: "2026-03-16", StartTime: "00:00", EndTime: "23:59"})
		require.NoError(t, err)
		_, err = e.availSvc.BlockDate(ctx, guard.ID, models.BlockDateRequest{Date: "2026-03-16", Reason: ptr("holiday")})
		require.NoError(t, err)

		res, err := e.availSvc.Resolve(ctx, guard.ID, monday, "09:00", "17:00")
		require.NoError(t, err)
		assert.Equal(t, models.AvailabilityReasonBlocked, res.Reason)
	})

	t.Run("conflicting shift beats special", func(t *testing.T) {
		e := newTestEngine(t)
		guard := e.addGuard(nil)
		b := e.addBooking(nil, nil)
		_, err := e.availSvc.SetSpecial(ctx, guard.ID, models.UpsertSpecialRequest{Date: "2026-03-16", StartTime: "00:00", EndTime: "23:59"})
		require.NoError(t, err)
		busy := e.addShift(b, models.ShiftStatusAccepted, &guard.ID, monday.Add(14*time.Hour))

		res, err := e.availSvc.ResolveWindow(ctx, guard.ID, monday.Add(9*time.Hour), monday.Add(15*time.Hour))
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, models.AvailabilityReasonConflict, res.Reason)
		assert.Equal(t, []uuid.UUID{busy.ID}, res.ConflictingShiftIDs)

		// Back-to-back is not a conflict
		res, err = e.availSvc.ResolveWindow(ctx, guard.ID, monday.Add(9*time.Hour), monday.Add(14*time.Hour))
		require.NoError(t, err)
		assert.True(t, res.Available)
	})

	t.Run("terminal shifts do not conflict", func(t *testing.T) {
		e := newTestEngine(t)
		guard := e.addGuard(nil)
		b := e.addBooking(nil, nil)
		setWeekly(t, e, guard, time.Monday, "", "")
		e.addShift(b, models.ShiftStatusCancelled, &guard.ID, monday.Add(10*time.Hour))

		res, err := e.availSvc.ResolveWindow(ctx, guard.ID, monday.Add(9*time.Hour), monday.Add(15*time.Hour))
		require.NoError(t, err)
		assert.True(t, res.Available)
	})
}

func TestAvailability_OvernightWindow(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	guard := e.addGuard(nil)
	setWeekly(t, e, guard, time.Monday, "18:00", "02:00")

	cases := []struct {
		start, end models.TimeOfDay
		want       bool
	}{
		{"20:00", "01:00", true},
		{"18:00", "02:00", true},
		{"22:00", "23:30", true},
		{"17:00", "23:00", false},
		{"12:00", "16:00", false},
	}
	for _, tc := range cases {
		res, err := e.availSvc.Resolve(ctx, guard.ID, monday, tc.start, tc.end)
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.Available, "%s-%s", tc.start, tc.end)
	}

	t.Run("night shift resolves against its start date", func(t *testing.T) {
		res, err := e.availSvc.ResolveWindow(ctx, guard.ID, monday.Add(21*time.Hour), monday.Add(27*time.Hour))
		require.NoError(t, err)
		assert.True(t, res.Available)
		assert.Equal(t, "Monday", res.DayName)
	})
}

func TestAvailability_RequestsCrossingMidnight(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	guard := e.addGuard(nil)
	setWeekly(t, e, guard, time.Monday, "08:00", "23:00")

	for _, tc := range []struct{ start, end models.TimeOfDay }{
		{"22:00", "02:00"},
		{"10:00", "09:00"},
		{"12:00", "12:00"},
	} {
		res, err := e.availSvc.Resolve(ctx, guard.ID, monday, tc.start, tc.end)
		require.NoError(t, err)
		assert.False(t, res.Available, "%s-%s", tc.start, tc.end)
		assert.Equal(t, models.AvailabilityReasonOutsideWeekly, res.Reason)
	}

	t.Run("shift running into the next day", func(t *testing.T) {
		res, err := e.availSvc.ResolveWindow(ctx, guard.ID, monday.Add(22*time.Hour), monday.Add(26*time.Hour))
		require.NoError(t, err)
		assert.False(t, res.Available)
		assert.Equal(t, models.AvailabilityReasonOutsideWeekly, res.Reason)
	})

	t.Run("shift longer than a day", func(t *testing.T) {
		res, err := e.availSvc.ResolveWindow(ctx, guard.ID, monday.Add(9*time.Hour), monday.Add(34*time.Hour))
		require.NoError(t, err)
		assert.False(t, res.Available)
	})

	t.Run("same-day shift still fits", func(t *testing.T) {
		res, err := e.availSvc.ResolveWindow(ctx, guard.ID, monday.Add(9*time.Hour), monday.Add(22*time.Hour))
		require.NoError(t, err)
		assert.True(t, res.Available)
	})
}

func TestAvailability_CRUDValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	guard := e.addGuard(nil)

	weekly := []models.UpsertWeeklyRequest{
		{DayOfWeek: nil},
		{DayOfWeek: ptr(7)},
		{DayOfWeek: ptr(-1)},
		{DayOfWeek: ptr(1), StartTime: ptr("09:00")},
		{DayOfWeek: ptr(1), StartTime: ptr("09:00"), EndTime: ptr("09:00")},
		{DayOfWeek: ptr(1), StartTime: ptr("25:00"), EndTime: ptr("09:00")},
	}
	for i, req := range weekly {
		_, err := e.availSvc.SetWeekly(ctx, guard.ID, req)
		assert.True(t, IsKind(err, KindValidation), "case %d", i)
	}

	_, err := e.availSvc.BlockDate(ctx, guard.ID, models.BlockDateRequest{Date: "16/03/2026"})
	assert.True(t, IsKind(err, KindValidation))

	_, err = e.availSvc.SetSpecial(ctx, guard.ID, models.UpsertSpecialRequest{Date: "2026-03-16", StartTime: "10:00", EndTime: "10:00"})
	assert.True(t, IsKind(err, KindValidation))

	_, err = e.availSvc.Resolve(ctx, guard.ID, monday, "nine", "17:00")
	assert.True(t, IsKind(err, KindValidation))

	t.Run("remove what is not there", func(t *testing.T) {
		assert.True(t, IsKind(e.availSvc.UnblockDate(ctx, guard.ID, "2026-03-16"), KindNotFound))
		assert.True(t, IsKind(e.availSvc.RemoveSpecial(ctx, guard.ID, "2026-03-16"), KindNotFound))
	})

	t.Run("block then unblock", func(t *testing.T) {
		_, err := e.availSvc.BlockDate(ctx, guard.ID, models.BlockDateRequest{Date: "2026-03-20"})
		require.NoError(t, err)

		all, err := e.availSvc.Get(ctx, guard.ID, e.now)
		require.NoError(t, err)
		assert.Len(t, all.Blocked, 1)

		require.NoError(t, e.availSvc.UnblockDate(ctx, guard.ID, "2026-03-20"))
		all, err = e.availSvc.Get(ctx, guard.ID, e.now)
		require.NoError(t, err)
		assert.Empty(t, all.Blocked)
	})
}

func TestAvailability_UpcomingWindows(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	guard := e.addGuard(nil)

	setWeekly(t, e, guard, time.Monday, "09:00", "17:00")
	_, err := e.availSvc.BlockDate(ctx, guard.ID, models.BlockDateRequest{Date: "2026-03-23"})
	require.NoError(t, err)
	_, err = e.availSvc.SetSpecial(ctx, guard.ID, models.UpsertSpecialRequest{Date: "2026-03-18", StartTime: "10:00", EndTime: "14:00"})
	require.NoError(t, err)

	windows, err := e.availSvc.UpcomingWindows(ctx, guard.ID, e.now, 14)
	require.NoError(t, err)

	assert.Equal(t, []UpcomingWindow{
		{Date: "2026-03-16", Start: "09:00", End: "17:00", Source: "weekly"},
		{Date: "2026-03-18", Start: "10:00", End: "14:00", Source: "special"},
	}, windows)

	_, err = e.availSvc.UpcomingWindows(ctx, guard.ID, e.now, 0)
	assert.True(t, IsKind(err, KindValidation))
}
