package channel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/slack-go/slack"

	"chanrelay/internal/domain"
)

// SlackConfig configures the Slack incoming-webhook sender.
type SlackConfig struct {
	Client *http.Client
	Logger *slog.Logger
}

// Slack posts content as the text of a Slack incoming webhook message.
type Slack struct {
	client *http.Client
	logger *slog.Logger
}

func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(0)
	}
	return &Slack{client: cfg.Client, logger: cfg.Logger}
}

func (s *Slack) Send(ctx context.Context, dest domain.Destination, content string) error {
	msg := &slack.WebhookMessage{
		Text:     content,
		Username: dest.Username,
		IconURL:  dest.AvatarURL,
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, dest.URL, s.client, msg); err != nil {
		de := &domain.DispatchError{Destination: dest.Label(), Err: err}
		var status slack.StatusCodeError
		if errors.As(err, &status) {
			de.StatusCode = status.Code
		}
		var rl *slack.RateLimitedError
		if errors.As(err, &rl) {
			de.StatusCode = http.StatusTooManyRequests
		}
		return de
	}
	return nil
}
