package push

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"
)

// WebhookPoster posts raw JSON bodies to a fixed URL
type WebhookPoster struct {
	url    string
	client *http.Client
}

// NewWebhookPoster creates a poster with a 5s timeout
func NewWebhookPoster(url string) *WebhookPoster {
	return &WebhookPoster{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Post sends body as application/json
func (p *WebhookPoster) Post(ctx context.Context, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewBufferString(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned status: %d", resp.StatusCode)
	}
	return nil
}
