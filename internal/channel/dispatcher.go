package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chanrelay/internal/domain"
)

// DispatcherConfig configures the per-kind destination senders.
type DispatcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
}

// Dispatcher implements domain.Sender by handing each destination to the
// sender registered for its kind.
type Dispatcher struct {
	senders map[domain.DestinationKind]domain.Sender
}

// NewDispatcher builds the webhook, discord and slack senders on one shared HTTP client.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	client := withUserAgent(SharedHTTPClient(cfg.Timeout), cfg.UserAgent)

	discord, err := NewDiscord(DiscordConfig{Client: client, UserAgent: cfg.UserAgent, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}
	return &Dispatcher{senders: map[domain.DestinationKind]domain.Sender{
		domain.KindWebhook: NewWebhook(WebhookConfig{Client: client, Logger: cfg.Logger}),
		domain.KindDiscord: discord,
		domain.KindSlack:   NewSlack(SlackConfig{Client: client, Logger: cfg.Logger}),
	}}, nil
}

// Register replaces the sender used for kind.
func (d *Dispatcher) Register(kind domain.DestinationKind, sender domain.Sender) {
	if d.senders == nil {
		d.senders = make(map[domain.DestinationKind]domain.Sender)
	}
	d.senders[kind] = sender
}

func (d *Dispatcher) Send(ctx context.Context, dest domain.Destination, content string) error {
	kind := dest.Kind
	if kind == "" {
		kind = domain.KindWebhook
	}
	sender, ok := d.senders[kind]
	if !ok {
		return &domain.DispatchError{Destination: dest.Label(), Err: fmt.Errorf("no sender for kind %q", kind)}
	}
	return sender.Send(ctx, dest, content)
}
