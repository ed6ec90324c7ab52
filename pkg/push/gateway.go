package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Message is a single push notification
type Message struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Sender delivers push notifications
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// GatewayConfig holds configuration for the HTTP push gateway
type GatewayConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// HTTPGateway posts pushes to an HTTP push gateway
type HTTPGateway struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPGateway creates a new push gateway client
func NewHTTPGateway(config GatewayConfig) *HTTPGateway {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		url:    config.URL,
		apiKey: config.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

// gatewayResponse is the gateway's reply envelope
type gatewayResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// Send posts one message to the gateway
func (g *HTTPGateway) Send(ctx context.Context, msg Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("push gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	if len(body) > 0 {
		var gwResp gatewayResponse
		if err := json.Unmarshal(body, &gwResp); err == nil && gwResp.Status != "" && gwResp.Status != "success" {
			return fmt.Errorf("push rejected: %s", gwResp.Comment)
		}
	}

	return nil
}

// LogSender writes pushes to the log instead of delivering them.
// Used when PUSH_MODE=dev.
type LogSender struct {
	Logger *logrus.Logger
}

// Send logs the message
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.WithFields(logrus.Fields{
		"user_id": msg.UserID,
		"title":   msg.Title,
		"data":    msg.Data,
	}).Info("[DEV PUSH] " + msg.Body)
	return nil
}
