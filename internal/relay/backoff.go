package relay

import (
	"context"
	"log/slog"
	"time"

	"chanrelay/internal/bus"
	"chanrelay/internal/domain"
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BackoffConfig configures a Backoff.
type BackoffConfig struct {
	Sleep  SleepFunc // defaults to a context-aware timer
	Events *bus.EventBus
	Logger *slog.Logger
}

// Backoff absorbs rate-limit signals: the invocation that raised one is
// suspended for exactly RetryAfter and then returns without retrying.
type Backoff struct {
	sleep  SleepFunc
	events *bus.EventBus
	logger *slog.Logger
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Backoff{sleep: cfg.Sleep, events: cfg.Events, logger: cfg.Logger}
}

// Wait suspends the caller for d. It returns early with ctx.Err() on cancellation.
func (b *Backoff) Wait(ctx context.Context, d time.Duration) error {
	return b.sleep(ctx, d)
}

// Guard runs fn. A RateLimitedError from fn is logged, slept off and
// swallowed; any other error is returned unchanged.
func (b *Backoff) Guard(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	rl, ok := domain.AsRateLimited(err)
	if !ok {
		return err
	}

	b.logger.Warn("rate limited by source, pausing",
		"retry_after", rl.RetryAfter.String(),
		"err", rl.Err,
	)
	b.events.Emit(bus.Event{
		Type:    bus.EventSourceRateLimit,
		Payload: map[string]any{"retry_after_seconds": rl.RetryAfter.Seconds()},
	})
	return b.Wait(ctx, rl.RetryAfter)
}
