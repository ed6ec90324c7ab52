package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/internal/queue"
	"github.com/sirupsen/logrus"
)

// Notifier sends a notification to a user. Delivery is best-effort:
// failures are logged and never reach the caller.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, title, body string, payload models.NotificationPayload)
}

// NotificationService records a notification and queues its push delivery
type NotificationService struct {
	store  NotificationStore
	queue  JobQueue
	logger *logrus.Logger
}

// NewNotificationService creates a new NotificationService. queue may be
// nil, in which case notifications are only recorded.
func NewNotificationService(store NotificationStore, q JobQueue, logger *logrus.Logger) *NotificationService {
	return &NotificationService{store: store, queue: q, logger: logger}
}

// Notify appends the notification and enqueues a push for it
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, title, body string, payload models.NotificationPayload) {
	if userID == uuid.Nil {
		return
	}

	n := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      payload.Kind(),
		Title:     title,
		Body:      body,
		Payload:   models.NotificationEnvelope{Payload: payload},
		CreatedAt: time.Now(),
	}

	log := s.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"kind":    n.Kind,
	})

	if err := s.store.Insert(ctx, n); err != nil {
		log.WithError(NewExternalServiceError("notification store", err)).Warn("Failed to record notification")
	}

	if s.queue == nil {
		return
	}

	msg := models.PushMessage{
		NotificationID: n.ID,
		UserID:         userID,
		Title:          title,
		Body:           body,
		Data:           pushData(payload),
	}
	if err := s.queue.Enqueue(ctx, queue.PushQueue, msg); err != nil {
		log.WithError(NewExternalServiceError("push queue", err)).Warn("Failed to queue push notification")
	}
}

// pushData flattens a payload into the string map push gateways accept
func pushData(payload models.NotificationPayload) map[string]string {
	data := map[string]string{"kind": string(payload.Kind())}
	raw, err := json.Marshal(payload)
	if err != nil {
		return data
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return data
	}
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			data[k] = val
		case nil:
		default:
			b, _ := json.Marshal(val)
			data[k] = string(b)
		}
	}
	return data
}

// PaymentSink receives shift-completed facts for the payment collaborator
type PaymentSink interface {
	PublishShiftCompleted(ctx context.Context, event models.ShiftCompletedEvent) error
}

// PaymentPublisher queues shift-completed events for webhook delivery
type PaymentPublisher struct {
	queue JobQueue
}

// NewPaymentPublisher creates a new PaymentPublisher
func NewPaymentPublisher(q JobQueue) *PaymentPublisher {
	return &PaymentPublisher{queue: q}
}

// PublishShiftCompleted enqueues the event
func (p *PaymentPublisher) PublishShiftCompleted(ctx context.Context, event models.ShiftCompletedEvent) error {
	if err := p.queue.Enqueue(ctx, queue.PaymentQueue, event); err != nil {
		return NewExternalServiceError("payment queue", err)
	}
	return nil
}
