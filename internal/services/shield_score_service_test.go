package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShieldScoreService_History(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	scores := NewShieldScoreService(e.ledger, quietLogger())
	guard := e.addGuard(nil)
	other := e.addGuard(nil)

	_, err := scores.Penalize(ctx, guard.ID, uuid.New(), models.ScoreReasonNoShow, 25)
	require.NoError(t, err)
	_, err = scores.Apply(ctx, guard.ID, uuid.New(), models.ScoreReasonReview, 2)
	require.NoError(t, err)
	_, err = scores.Penalize(ctx, other.ID, uuid.New(), models.ScoreReasonCancellation, 10)
	require.NoError(t, err)

	history, err := scores.History(ctx, guard.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultHistoryLimit, e.ledger.lastLimit)
	require.Len(t, history, 2)
	assert.Equal(t, models.ScoreReasonReview, history[0].Reason)
	assert.Equal(t, 55.0, history[0].ScoreBefore)
	assert.Equal(t, 57.0, history[0].ScoreAfter)
	assert.Equal(t, models.ScoreReasonNoShow, history[1].Reason)
	assert.Equal(t, -25.0, history[1].Delta)

	history, err = scores.History(ctx, guard.ID, 1)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = scores.History(ctx, guard.ID, 10000)
	require.NoError(t, err)
	assert.Equal(t, MaxHistoryLimit, e.ledger.lastLimit)
}
