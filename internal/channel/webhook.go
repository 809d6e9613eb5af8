package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"chanrelay/internal/domain"
)

// maxErrorBody caps how much of a failed response body is kept in a DispatchError.
const maxErrorBody = 512

// WebhookPayload is the JSON body posted to a generic webhook destination.
type WebhookPayload struct {
	Content string `json:"content"`
}

// WebhookConfig configures the generic webhook sender.
type WebhookConfig struct {
	Client *http.Client
	Logger *slog.Logger
}

// Webhook posts {"content": ...} to a destination URL. 200 and 204 count as delivered.
type Webhook struct {
	client *http.Client
	logger *slog.Logger
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(0)
	}
	return &Webhook{client: cfg.Client, logger: cfg.Logger}
}

func (w *Webhook) Send(ctx context.Context, dest domain.Destination, content string) error {
	body, err := json.Marshal(WebhookPayload{Content: content})
	if err != nil {
		return &domain.DispatchError{Destination: dest.Label(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.URL, bytes.NewReader(body))
	if err != nil {
		return &domain.DispatchError{Destination: dest.Label(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return &domain.DispatchError{Destination: dest.Label(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &domain.DispatchError{
		Destination: dest.Label(),
		StatusCode:  resp.StatusCode,
		Body:        string(snippet),
		Err:         fmt.Errorf("unexpected status %s", resp.Status),
	}
}
