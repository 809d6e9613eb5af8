package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"chanrelay/internal/bus"
)

// Relay holds the relay's counters and subscribes them to pipeline events.
type Relay struct {
	Collector *Collector

	Received         *Counter
	Routed           *Counter
	DeliveriesSent   *Counter
	DeliveriesFailed *Counter
	PipelineErrors   *Counter
	RateLimited      *Counter
	RateLimitWait    *Histogram
}

func NewRelay() *Relay {
	c := NewCollector("chanrelay")
	return &Relay{
		Collector:        c,
		Received:         c.Counter("chanrelay_messages_received_total", "Channel posts taken off the bus", ""),
		Routed:           c.Counter("chanrelay_messages_routed_total", "Posts fanned out to their destinations", ""),
		DeliveriesSent:   c.Counter("chanrelay_deliveries_total", "Destination deliveries by outcome", `outcome="sent"`),
		DeliveriesFailed: c.Counter("chanrelay_deliveries_total", "Destination deliveries by outcome", `outcome="failed"`),
		PipelineErrors:   c.Counter("chanrelay_pipeline_errors_total", "Posts dropped by an unexpected error", ""),
		RateLimited:      c.Counter("chanrelay_source_rate_limited_total", "Rate-limit signals from the source", ""),
		RateLimitWait: c.Histogram("chanrelay_source_rate_limit_wait_seconds", "Pause requested by the source", "",
			[]float64{1, 5, 15, 60, 300, math.Inf(1)}),
	}
}

// Discarded returns the discard counter for reason (stale, empty, duplicate).
func (m *Relay) Discarded(reason string) *Counter {
	return m.Collector.Counter("chanrelay_messages_discarded_total", "Posts dropped before routing",
		fmt.Sprintf("reason=%q", reason))
}

// Observe registers handlers on events that keep the counters current.
func (m *Relay) Observe(events *bus.EventBus) {
	events.On(bus.EventMessageReceived, func(bus.Event) { m.Received.Inc() })
	events.On(bus.EventMessageRouted, func(bus.Event) { m.Routed.Inc() })
	events.On(bus.EventDeliverySent, func(bus.Event) { m.DeliveriesSent.Inc() })
	events.On(bus.EventDeliveryFailed, func(bus.Event) { m.DeliveriesFailed.Inc() })
	events.On(bus.EventPipelineError, func(bus.Event) { m.PipelineErrors.Inc() })
	events.On(bus.EventMessageDiscarded, func(e bus.Event) {
		reason, _ := e.Payload["reason"].(string)
		if reason == "" {
			reason = "unknown"
		}
		m.Discarded(reason).Inc()
	})
	events.On(bus.EventSourceRateLimit, func(e bus.Event) {
		m.RateLimited.Inc()
		if secs, ok := e.Payload["retry_after_seconds"].(float64); ok {
			m.RateLimitWait.Observe(secs)
		}
	})
}

// Serve exposes the collector at endpoint on listen until ctx is cancelled.
func Serve(ctx context.Context, listen, endpoint string, c *Collector, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(endpoint, c.Handler())

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics endpoint listening", "addr", listen, "path", endpoint)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
