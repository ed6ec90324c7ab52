package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shieldforce/guard-dispatch/internal/models"
)

// ErrPersonnelWithoutStatus is returned when an update would reassign a
// shift without also writing its status
var ErrPersonnelWithoutStatus = errors.New("personnel_id may only change together with status")

// ErrEmptyUpdate is returned when a conditional update sets nothing
var ErrEmptyUpdate = errors.New("shift update has no fields")

const shiftColumns = `
	id, booking_id, personnel_id, original_personnel_id, role, hourly_rate,
	scheduled_start, scheduled_end, status, dispatcher_status, is_urgent, surge_rate,
	accepted_at, actual_start, actual_end, check_in_lat, check_in_lng,
	check_out_lat, check_out_lng, hours_worked, total_pay,
	cancelled_at, cancellation_reason, cancelled_by, no_show_at, no_show_notes,
	created_at, updated_at`

// nonTerminalStatuses are the statuses that still hold a guard's time
var nonTerminalStatuses = []string{
	string(models.ShiftStatusPending),
	string(models.ShiftStatusAccepted),
	string(models.ShiftStatusCheckedIn),
}

// ShiftRepository handles shift database operations
type ShiftRepository struct {
	db *sqlx.DB
}

// NewShiftRepository creates a new ShiftRepository
func NewShiftRepository(db *sqlx.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// GetByID returns a shift, or nil when it does not exist
func (r *ShiftRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	var shift models.Shift
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1`
	err := r.db.GetContext(ctx, &shift, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift %s: %w", id, err)
	}
	return &shift, nil
}

// ListByBooking returns every shift on a booking ordered by start
func (r *ShiftRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.Shift, error) {
	shifts := []*models.Shift{}
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE booking_id = $1 ORDER BY scheduled_start, created_at`
	if err := r.db.SelectContext(ctx, &shifts, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list shifts for booking %s: %w", bookingID, err)
	}
	return shifts, nil
}

// ListUnfilledByBooking returns pending shifts with no personnel
func (r *ShiftRepository) ListUnfilledByBooking(ctx context.Context, bookingID uuid.UUID) ([]*models.Shift, error) {
	shifts := []*models.Shift{}
	query := `SELECT ` + shiftColumns + ` FROM shifts
		WHERE booking_id = $1 AND personnel_id IS NULL AND status = 'pending'
		ORDER BY scheduled_start, created_at`
	if err := r.db.SelectContext(ctx, &shifts, query, bookingID); err != nil {
		return nil, fmt.Errorf("failed to list unfilled shifts for booking %s: %w", bookingID, err)
	}
	return shifts, nil
}

// ListOverlapping returns non-terminal shifts held by personnelID that
// overlap [start, end) using the half-open interval test
func (r *ShiftRepository) ListOverlapping(ctx context.Context, personnelID uuid.UUID, start, end time.Time) ([]*models.Shift, error) {
	shifts := []*models.Shift{}
	query := `SELECT ` + shiftColumns + ` FROM shifts
		WHERE personnel_id = $1
		  AND status = ANY($2)
		  AND scheduled_start < $4
		  AND scheduled_end > $3`
	if err := r.db.SelectContext(ctx, &shifts, query, personnelID, pq.Array(nonTerminalStatuses), start, end); err != nil {
		return nil, fmt.Errorf("failed to list overlapping shifts: %w", err)
	}
	return shifts, nil
}

// ListBusyPersonnel returns which of personnelIDs are working a shift
// (accepted or checked in) whose window contains at
func (r *ShiftRepository) ListBusyPersonnel(ctx context.Context, personnelIDs []uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	if len(personnelIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT DISTINCT personnel_id FROM shifts
		WHERE personnel_id IN (?)
		  AND status IN ('accepted', 'checked_in')
		  AND scheduled_start <= ?
		  AND scheduled_end > ?`, personnelIDs, at, at)
	if err != nil {
		return nil, fmt.Errorf("failed to build busy personnel query: %w", err)
	}
	query = r.db.Rebind(query)

	busy := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &busy, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list busy personnel: %w", err)
	}
	return busy, nil
}

// ListAccepted returns accepted shifts starting before the cutoff,
// oldest first
func (r *ShiftRepository) ListAccepted(ctx context.Context, startsBefore time.Time, limit int) ([]*models.Shift, error) {
	shifts := []*models.Shift{}
	query := `SELECT ` + shiftColumns + ` FROM shifts
		WHERE status = 'accepted' AND scheduled_start <= $1
		  AND dispatcher_status = 'none'
		ORDER BY scheduled_start
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &shifts, query, startsBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list accepted shifts: %w", err)
	}
	return shifts, nil
}

// Create inserts a single shift
func (r *ShiftRepository) Create(ctx context.Context, shift *models.Shift) error {
	return insertShift(ctx, r.db, shift)
}

func insertShift(ctx context.Context, ext sqlx.ExtContext, shift *models.Shift) error {
	if shift.ID == uuid.Nil {
		shift.ID = uuid.New()
	}
	now := time.Now()
	shift.CreatedAt = now
	shift.UpdatedAt = now
	if shift.Status == "" {
		shift.Status = models.ShiftStatusPending
	}
	if shift.DispatcherStatus == "" {
		shift.DispatcherStatus = models.DispatcherStatusNone
	}

	query := `
		INSERT INTO shifts (
			id, booking_id, personnel_id, role, hourly_rate,
			scheduled_start, scheduled_end, status, dispatcher_status, is_urgent,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := ext.ExecContext(ctx, query,
		shift.ID, shift.BookingID, shift.PersonnelID, shift.Role, shift.HourlyRate,
		shift.ScheduledStart, shift.ScheduledEnd, shift.Status, shift.DispatcherStatus, shift.IsUrgent,
		shift.CreatedAt, shift.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

// CompareAndSwap applies upd to the shift only if pred still holds at
// write time. It returns the updated row and true on success, or nil and
// false when the predicate no longer matched.
func (r *ShiftRepository) CompareAndSwap(ctx context.Context, id uuid.UUID, pred models.ShiftPredicate, upd models.ShiftUpdate) (*models.Shift, bool, error) {
	query, args, err := buildShiftCAS(id, pred, upd)
	if err != nil {
		return nil, false, err
	}

	var shift models.Shift
	err = r.db.QueryRowxContext(ctx, query, args...).StructScan(&shift)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to update shift %s: %w", id, err)
	}
	return &shift, true, nil
}

// buildShiftCAS renders the single conditional UPDATE statement
func buildShiftCAS(id uuid.UUID, pred models.ShiftPredicate, upd models.ShiftUpdate) (string, []interface{}, error) {
	if upd.TouchesPersonnel() && upd.Status == nil {
		return "", nil, ErrPersonnelWithoutStatus
	}

	var (
		sets  []string
		conds []string
		args  = []interface{}{id}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	set := func(column string, v interface{}) {
		sets = append(sets, column+" = "+arg(v))
	}

	if upd.Status != nil {
		set("status", string(*upd.Status))
	}
	if upd.DispatcherStatus != nil {
		set("dispatcher_status", string(*upd.DispatcherStatus))
	}
	if upd.PersonnelID != nil {
		set("personnel_id", *upd.PersonnelID)
	}
	if upd.OriginalPersonnelID != nil {
		set("original_personnel_id", *upd.OriginalPersonnelID)
	}
	if upd.IsUrgent != nil {
		set("is_urgent", *upd.IsUrgent)
	}
	if upd.SurgeRate != nil {
		set("surge_rate", *upd.SurgeRate)
	}
	if upd.AcceptedAt != nil {
		set("accepted_at", *upd.AcceptedAt)
	}
	if upd.ActualStart != nil {
		set("actual_start", *upd.ActualStart)
	}
	if upd.ActualEnd != nil {
		set("actual_end", *upd.ActualEnd)
	}
	if upd.CheckInLat != nil {
		set("check_in_lat", *upd.CheckInLat)
	}
	if upd.CheckInLng != nil {
		set("check_in_lng", *upd.CheckInLng)
	}
	if upd.CheckOutLat != nil {
		set("check_out_lat", *upd.CheckOutLat)
	}
	if upd.CheckOutLng != nil {
		set("check_out_lng", *upd.CheckOutLng)
	}
	if upd.HoursWorked != nil {
		set("hours_worked", *upd.HoursWorked)
	}
	if upd.TotalPay != nil {
		set("total_pay", *upd.TotalPay)
	}
	if upd.CancelledAt != nil {
		set("cancelled_at", *upd.CancelledAt)
	}
	if upd.CancelReason != nil {
		set("cancellation_reason", *upd.CancelReason)
	}
	if upd.CancelledByRole != nil {
		set("cancelled_by", *upd.CancelledByRole)
	}
	if upd.NoShowAt != nil {
		set("no_show_at", *upd.NoShowAt)
	}
	if upd.NoShowNotes != nil {
		set("no_show_notes", *upd.NoShowNotes)
	}

	if len(sets) == 0 {
		return "", nil, ErrEmptyUpdate
	}
	sets = append(sets, "updated_at = NOW()")

	if len(pred.Statuses) > 0 {
		statuses := make([]string, len(pred.Statuses))
		for i, s := range pred.Statuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "status = ANY("+arg(pq.Array(statuses))+")")
	}
	if len(pred.DispatcherStatuses) > 0 {
		statuses := make([]string, len(pred.DispatcherStatuses))
		for i, s := range pred.DispatcherStatuses {
			statuses[i] = string(s)
		}
		conds = append(conds, "dispatcher_status = ANY("+arg(pq.Array(statuses))+")")
	}
	if pred.PersonnelID != nil {
		conds = append(conds, "personnel_id = "+arg(*pred.PersonnelID))
	}
	if pred.RequireUnassigned {
		conds = append(conds, "personnel_id IS NULL")
	}

	query := "UPDATE shifts SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if len(conds) > 0 {
		query += " AND " + strings.Join(conds, " AND ")
	}
	query += " RETURNING " + shiftColumns

	return query, args, nil
}
