package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const webhookTimeout = 10 * time.Second

// webhookPayload is the JSON document POSTed for every alert.
type webhookPayload struct {
	Source string `json:"source"`
	Alert
	SentAt string `json:"sent_at"`
}

// WebhookNotifier POSTs alerts as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	source string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		source: "indengine",
		client: &http.Client{Timeout: webhookTimeout},
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		Source: w.source,
		Alert:  alert,
		SentAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if alert.TraceID != "" {
		req.Header.Set("X-Trace-Id", alert.TraceID)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: %s responded %d", w.url, resp.StatusCode)
	}
	slog.Debug("webhook alert sent", append([]any{"title", alert.Title}, alert.attrs()...)...)
	return nil
}
