package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Prunable is a delivery log that can drop old records.
type Prunable interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner deletes delivery records older than the retention period on a cron schedule.
type Pruner struct {
	target    Prunable
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruner validates schedule (standard five-field or descriptor such as "@daily").
func NewPruner(target Prunable, schedule string, retention time.Duration, logger *slog.Logger) (*Pruner, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}
	p := &Pruner{
		target:    target,
		retention: retention,
		cron:      cron.New(),
		logger:    logger.With("logger", "pruner"),
		now:       time.Now,
	}
	if _, err := p.cron.AddFunc(schedule, func() { p.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// RunOnce prunes immediately and returns the number of removed records.
func (p *Pruner) RunOnce(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.retention)
	n, err := p.target.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Error("prune failed", "err", err)
		return 0
	}
	if n > 0 {
		p.logger.Info("delivery log pruned", "removed", n, "cutoff", cutoff.Format(time.RFC3339))
	}
	return n
}

func (p *Pruner) Start() {
	p.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}
