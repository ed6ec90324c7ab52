package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/sirupsen/logrus"
)

// ShieldScoreService is the only path through which a Shield Score moves.
// Every change is keyed by (reason, shift) so a repeated event is applied
// once.
type ShieldScoreService struct {
	ledger ScoreLedger
	logger *logrus.Logger
}

// NewShieldScoreService creates a new ShieldScoreService
func NewShieldScoreService(ledger ScoreLedger, logger *logrus.Logger) *ShieldScoreService {
	return &ShieldScoreService{ledger: ledger, logger: logger}
}

// Apply records and applies delta for the guard. Penalties are negative.
func (s *ShieldScoreService) Apply(ctx context.Context, personnelID uuid.UUID, shiftID uuid.UUID, reason models.ScoreChangeReason, delta float64) (*models.ScoreChangeResult, error) {
	change := models.ScoreChange{
		PersonnelID:    personnelID,
		ShiftID:        &shiftID,
		Reason:         reason,
		Delta:          delta,
		IdempotencyKey: fmt.Sprintf("%s:%s", reason, shiftID),
	}

	result, err := s.ledger.ApplyScoreChange(ctx, change)
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s score change: %w", reason, err)
	}

	s.logger.WithFields(logrus.Fields{
		"personnel_id": personnelID,
		"shift_id":     shiftID,
		"reason":       reason,
		"delta":        delta,
		"score_before": result.ScoreBefore,
		"score_after":  result.ScoreAfter,
		"applied":      result.Applied,
	}).Info("Shield score change")

	return result, nil
}

// Penalize applies a positive penalty amount as a negative delta
func (s *ShieldScoreService) Penalize(ctx context.Context, personnelID uuid.UUID, shiftID uuid.UUID, reason models.ScoreChangeReason, penalty float64) (*models.ScoreChangeResult, error) {
	return s.Apply(ctx, personnelID, shiftID, reason, -penalty)
}

// History page sizes
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// History returns the guard's most recent score changes, newest first.
// A non-positive limit means DefaultHistoryLimit.
func (s *ShieldScoreService) History(ctx context.Context, personnelID uuid.UUID, limit int) ([]*models.ShieldScoreHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.ledger.ListHistory(ctx, personnelID, limit)
}
