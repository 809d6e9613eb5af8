// Package relay runs the per-message relay: sequence check, normalization,
// cleaning and fan-out to destinations, one message at a time.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"chanrelay/internal/bus"
	"chanrelay/internal/domain"
)

// ServiceConfig wires a Service. Deliveries and Events are optional.
type ServiceConfig struct {
	Mapping         domain.ChannelMapping
	Watermarks      domain.WatermarkStore
	Deliveries      domain.DeliveryLog
	Sender          domain.Sender
	BlockedMentions []string
	RecentWindow    int
	Backoff         *Backoff
	Events          *bus.EventBus
	Logger          *slog.Logger
}

// Service consumes inbound posts and relays them.
type Service struct {
	sequencer *Sequencer
	pipeline  *Pipeline
	router    *Router
	recent    *RecentWindow
	backoff   *Backoff
	events    *bus.EventBus
	logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Backoff == nil {
		cfg.Backoff = NewBackoff(BackoffConfig{Events: cfg.Events, Logger: cfg.Logger})
	}
	return &Service{
		sequencer: NewSequencer(cfg.Watermarks),
		pipeline:  NewPipeline(cfg.BlockedMentions, cfg.Logger),
		router: NewRouter(RouterConfig{
			Mapping:    cfg.Mapping,
			Sender:     cfg.Sender,
			Deliveries: cfg.Deliveries,
			Events:     cfg.Events,
			Logger:     cfg.Logger,
		}),
		recent:  NewRecentWindow(cfg.RecentWindow),
		backoff: cfg.Backoff,
		events:  cfg.Events,
		logger:  cfg.Logger,
	}
}

// Run handles messages from mb sequentially until ctx is cancelled or the
// bus is closed. Every handler invocation runs under the backoff guard.
func (s *Service) Run(ctx context.Context, mb domain.MessageBus) error {
	inbound := mb.Subscribe()
	s.logger.Info("relay started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("relay stopping")
			return nil
		case msg, ok := <-inbound:
			if !ok {
				s.logger.Info("bus closed, relay stopping")
				return nil
			}
			err := s.backoff.Guard(ctx, func(ctx context.Context) error {
				return s.Handle(ctx, msg)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("message not relayed",
					"channel", msg.Channel,
					"message_id", msg.ID,
					"err", err,
				)
				s.events.Emit(bus.Event{
					Type:      bus.EventPipelineError,
					Channel:   msg.Channel,
					MessageID: msg.ID,
					Payload:   map[string]any{"error": err.Error()},
				})
			}
		}
	}
}

// Handle relays one message. The watermark advances only when the message
// is routed or discarded; a rate-limit signal or error leaves it in place.
// A panic is recovered and returned as ErrUnhandledPipeline.
func (s *Service) Handle(ctx context.Context, msg domain.InboundMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("pipeline panic", "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", domain.ErrUnhandledPipeline, r)
		}
	}()

	s.events.Emit(bus.Event{Type: bus.EventMessageReceived, Channel: msg.Channel, MessageID: msg.ID})

	ok, err := s.sequencer.Accept(ctx, msg.Channel, msg.ID)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Debug("message at or below watermark", "channel", msg.Channel, "message_id", msg.ID)
		s.discard(msg, "stale")
		return nil
	}

	content := s.pipeline.Process(msg)
	if content == "" {
		s.logger.Info("empty content, nothing to relay", "channel", msg.Channel, "message_id", msg.ID)
		s.discard(msg, "empty")
		return s.sequencer.Advance(ctx, msg.Channel, msg.ID)
	}
	if s.recent.Contains(msg.Channel, content) {
		s.logger.Info("content already relayed recently", "channel", msg.Channel, "message_id", msg.ID)
		s.discard(msg, "duplicate")
		return s.sequencer.Advance(ctx, msg.Channel, msg.ID)
	}

	report, err := s.router.DispatchMessage(ctx, msg.Channel, msg.ID, content)
	if err != nil {
		return err
	}
	s.recent.Add(msg.Channel, content)

	s.logger.Info("message relayed",
		"channel", msg.Channel,
		"message_id", msg.ID,
		"destinations", report.Attempted,
		"delivered", report.Delivered,
	)
	s.events.Emit(bus.Event{
		Type:      bus.EventMessageRouted,
		Channel:   msg.Channel,
		MessageID: msg.ID,
		Payload:   map[string]any{"attempted": report.Attempted, "delivered": report.Delivered},
	})
	return s.sequencer.Advance(ctx, msg.Channel, msg.ID)
}

func (s *Service) discard(msg domain.InboundMessage, reason string) {
	s.events.Emit(bus.Event{
		Type:      bus.EventMessageDiscarded,
		Channel:   msg.Channel,
		MessageID: msg.ID,
		Payload:   map[string]any{"reason": reason},
	})
}
