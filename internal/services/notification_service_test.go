package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	inserted []*models.Notification
	err      error
}

func (r *recordingStore) Insert(ctx context.Context, n *models.Notification) error {
	r.inserted = append(r.inserted, n)
	return r.err
}

type enqueued struct {
	queue   string
	payload interface{}
}

type recordingQueue struct {
	jobs []enqueued
	err  error
}

func (r *recordingQueue) Enqueue(ctx context.Context, queueName string, payload interface{}) error {
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, enqueued{queue: queueName, payload: payload})
	return nil
}

func offeredPayload() models.ShiftOfferedPayload {
	return models.ShiftOfferedPayload{
		ShiftID:        uuid.New(),
		BookingID:      uuid.New(),
		Role:           "door_supervisor",
		HourlyRate:     18.5,
		ScheduledStart: time.Date(2026, 3, 16, 20, 0, 0, 0, time.UTC),
		MatchScore:     89.67,
	}
}

func TestNotificationService_Notify(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{}
	q := &recordingQueue{}
	svc := NewNotificationService(store, q, quietLogger())

	user := uuid.New()
	payload := offeredPayload()
	svc.Notify(ctx, user, "New shift offer", "You have been offered a shift", payload)

	require.Len(t, store.inserted, 1)
	n := store.inserted[0]
	assert.Equal(t, user, n.UserID)
	assert.Equal(t, models.NotificationShiftOffered, n.Kind)
	assert.Equal(t, payload, n.Payload.Payload)

	require.Len(t, q.jobs, 1)
	assert.Equal(t, queue.PushQueue, q.jobs[0].queue)
	msg, ok := q.jobs[0].payload.(models.PushMessage)
	require.True(t, ok)
	assert.Equal(t, n.ID, msg.NotificationID)
	assert.Equal(t, "shift_offered", msg.Data["kind"])
	assert.Equal(t, payload.ShiftID.String(), msg.Data["shift_id"])
	assert.Equal(t, "18.5", msg.Data["hourly_rate"])
	assert.Equal(t, "door_supervisor", msg.Data["role"])
}

func TestNotificationService_BestEffort(t *testing.T) {
	ctx := context.Background()

	t.Run("store and queue failures are swallowed", func(t *testing.T) {
		store := &recordingStore{err: errors.New("connection refused")}
		q := &recordingQueue{err: errors.New("redis down")}
		svc := NewNotificationService(store, q, quietLogger())

		assert.NotPanics(t, func() {
			svc.Notify(ctx, uuid.New(), "title", "body", offeredPayload())
		})
		assert.Len(t, store.inserted, 1)
	})

	t.Run("no queue records only", func(t *testing.T) {
		store := &recordingStore{}
		svc := NewNotificationService(store, nil, quietLogger())
		svc.Notify(ctx, uuid.New(), "title", "body", offeredPayload())
		assert.Len(t, store.inserted, 1)
	})

	t.Run("nil user is dropped", func(t *testing.T) {
		store := &recordingStore{}
		svc := NewNotificationService(store, nil, quietLogger())
		svc.Notify(ctx, uuid.Nil, "title", "body", offeredPayload())
		assert.Empty(t, store.inserted)
	})
}

func TestPaymentPublisher(t *testing.T) {
	ctx := context.Background()
	event := models.ShiftCompletedEvent{ShiftID: uuid.New()}

	q := &recordingQueue{}
	require.NoError(t, NewPaymentPublisher(q).PublishShiftCompleted(ctx, event))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, queue.PaymentQueue, q.jobs[0].queue)

	err := NewPaymentPublisher(&recordingQueue{err: errors.New("redis down")}).PublishShiftCompleted(ctx, event)
	assert.True(t, IsKind(err, KindExternalService))
}
