package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Craigmuzza/PVPStore-sub000/internal/logging"
)

// Notifier delivers a structured alert payload to the external sink.
type Notifier interface {
	Notify(ctx context.Context, payload Payload) error
}

// WebhookNotifier POSTs payloads as JSON to a configured endpoint. The chat
// layer behind the webhook owns all message formatting.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(url string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
		logger: logging.Component(logger, "alert_webhook"),
	}
}

// Notify posts one payload. Any non-2xx response is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info().
		Str("type", string(payload.Type)).
		Int("item_id", payload.Item.ID).
		Str("channel_id", payload.ChannelID).
		Msg("alert delivered")
	return nil
}

var _ Notifier = (*WebhookNotifier)(nil)
