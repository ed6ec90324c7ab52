package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/pkg/push"
)

// PushDelivery decodes a queued PushMessage and hands it to sender
func PushDelivery(sender push.Sender) DeliverFunc {
	return func(ctx context.Context, job string) error {
		var msg models.PushMessage
		if err := json.Unmarshal([]byte(job), &msg); err != nil {
			// Retrying cannot fix a malformed job
			return nil
		}
		return sender.Send(ctx, push.Message{
			UserID: msg.UserID.String(),
			Title:  msg.Title,
			Body:   msg.Body,
			Data:   msg.Data,
		})
	}
}

// Poster is satisfied by push.WebhookPoster
type Poster interface {
	Post(ctx context.Context, body string) error
}

// WebhookDelivery forwards the raw job body to the payment collaborator
func WebhookDelivery(poster Poster) DeliverFunc {
	return func(ctx context.Context, job string) error {
		if !json.Valid([]byte(job)) {
			return nil
		}
		if err := poster.Post(ctx, job); err != nil {
			return fmt.Errorf("failed to post shift-completed event: %w", err)
		}
		return nil
	}
}
