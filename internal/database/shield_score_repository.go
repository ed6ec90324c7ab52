package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shieldforce/guard-dispatch/internal/models"
)

// ShieldScoreRepository owns every write to personnel.shield_score.
// Each change is appended to shield_score_history before the score moves.
type ShieldScoreRepository struct {
	db *sqlx.DB
}

// NewShieldScoreRepository creates a new ShieldScoreRepository
func NewShieldScoreRepository(db *sqlx.DB) *ShieldScoreRepository {
	return &ShieldScoreRepository{db: db}
}

// ApplyScoreChange appends a history entry and then applies the clamped
// delta, all under a row lock on the guard. A repeated idempotency key is
// a no-op and reports Applied=false with the current score.
func (r *ShieldScoreRepository) ApplyScoreChange(ctx context.Context, change models.ScoreChange) (*models.ScoreChangeResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current float64
	err = tx.GetContext(ctx, &current,
		`SELECT shield_score FROM personnel WHERE id = $1 FOR UPDATE`, change.PersonnelID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("personnel %s not found: %w", change.PersonnelID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock personnel score: %w", err)
	}

	after := math.Round(models.ClampScore(current+change.Delta)*100) / 100

	result, err := tx.ExecContext(ctx, `
		INSERT INTO shield_score_history (
			id, personnel_id, shift_id, reason, delta, score_before, score_after,
			idempotency_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (personnel_id, idempotency_key) DO NOTHING`,
		uuid.New(), change.PersonnelID, change.ShiftID, change.Reason, change.Delta, current, after,
		change.IdempotencyKey, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append score history: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &models.ScoreChangeResult{Applied: false, ScoreBefore: current, ScoreAfter: current}, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE personnel SET shield_score = $2, updated_at = NOW() WHERE id = $1`,
		change.PersonnelID, after)
	if err != nil {
		return nil, fmt.Errorf("failed to update shield score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit score change: %w", err)
	}

	return &models.ScoreChangeResult{Applied: true, ScoreBefore: current, ScoreAfter: after}, nil
}

// ListHistory returns the ledger for a guard, newest first
func (r *ShieldScoreRepository) ListHistory(ctx context.Context, personnelID uuid.UUID, limit int) ([]*models.ShieldScoreHistory, error) {
	history := []*models.ShieldScoreHistory{}
	query := `
		SELECT id, personnel_id, shift_id, reason, delta, score_before, score_after, idempotency_key, created_at
		FROM shield_score_history
		WHERE personnel_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if err := r.db.SelectContext(ctx, &history, query, personnelID, limit); err != nil {
		return nil, fmt.Errorf("failed to list score history: %w", err)
	}
	return history, nil
}
