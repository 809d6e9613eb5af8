package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chanrelay/internal/bus"
	"chanrelay/internal/domain"
)

// DispatchReport summarizes one fan-out.
type DispatchReport struct {
	Attempted int
	Delivered int
	Failures  []error
}

// RouterConfig configures a Router. Deliveries and Events are optional.
type RouterConfig struct {
	Mapping    domain.ChannelMapping
	Sender     domain.Sender
	Deliveries domain.DeliveryLog
	Events     *bus.EventBus
	Logger     *slog.Logger
}

// Router fans content out to every destination of a channel, in configured
// order, one at a time.
type Router struct {
	mapping    domain.ChannelMapping
	sender     domain.Sender
	deliveries domain.DeliveryLog
	events     *bus.EventBus
	logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		mapping:    cfg.Mapping,
		sender:     cfg.Sender,
		deliveries: cfg.Deliveries,
		events:     cfg.Events,
		logger:     cfg.Logger,
	}
}

// Dispatch delivers content to the destinations of channel. Empty content is
// not sent. A failed destination is logged and the rest are still attempted.
func (r *Router) Dispatch(ctx context.Context, channel, content string) DispatchReport {
	report, _ := r.DispatchMessage(ctx, channel, 0, content)
	return report
}

// DispatchMessage is Dispatch for a known source message. The error is
// non-nil only when a sender surfaced a source rate-limit signal; the
// remaining destinations are then skipped.
func (r *Router) DispatchMessage(ctx context.Context, channel string, messageID int64, content string) (DispatchReport, error) {
	var report DispatchReport
	if content == "" {
		return report, nil
	}

	for _, dest := range r.mapping.Destinations(channel) {
		report.Attempted++
		deliveryID := uuid.NewString()
		err := r.sender.Send(ctx, dest, content)
		r.record(ctx, deliveryID, channel, messageID, dest, err)

		if rl, ok := domain.AsRateLimited(err); ok {
			return report, rl
		}

		if err != nil {
			report.Failures = append(report.Failures, err)
			r.logger.Error("delivery failed",
				"channel", channel,
				"message_id", messageID,
				"destination", dest.Label(),
				"delivery_id", deliveryID,
				"err", err,
			)
			r.events.Emit(bus.Event{
				Type:      bus.EventDeliveryFailed,
				Channel:   channel,
				MessageID: messageID,
				Payload:   map[string]any{"destination": dest.Label(), "kind": string(dest.Kind), "error": err.Error()},
			})
			continue
		}

		report.Delivered++
		r.logger.Debug("delivered", "channel", channel, "message_id", messageID, "destination", dest.Label())
		r.events.Emit(bus.Event{
			Type:      bus.EventDeliverySent,
			Channel:   channel,
			MessageID: messageID,
			Payload:   map[string]any{"destination": dest.Label(), "kind": string(dest.Kind)},
		})
	}
	return report, nil
}

func (r *Router) record(ctx context.Context, id, channel string, messageID int64, dest domain.Destination, sendErr error) {
	if r.deliveries == nil {
		return
	}
	rec := domain.DeliveryRecord{
		ID:          id,
		Channel:     channel,
		MessageID:   messageID,
		Destination: dest.Label(),
		Kind:        dest.Kind,
		OK:          sendErr == nil,
		CreatedAt:   time.Now(),
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if err := r.deliveries.RecordDelivery(ctx, rec); err != nil {
		r.logger.Warn("delivery not recorded", "delivery_id", id, "err", err)
	}
}
