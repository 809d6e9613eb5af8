package relay

import (
	"context"
	"fmt"

	"chanrelay/internal/domain"
)

// Sequencer drops messages at or below the per-channel watermark.
type Sequencer struct {
	store domain.WatermarkStore
}

func NewSequencer(store domain.WatermarkStore) *Sequencer {
	return &Sequencer{store: store}
}

// Accept reports whether id is newer than the channel's watermark (0 when unset).
func (s *Sequencer) Accept(ctx context.Context, channel string, id int64) (bool, error) {
	mark, err := s.store.Watermark(ctx, channel)
	if err != nil {
		return false, fmt.Errorf("sequencer: %w", err)
	}
	return id > mark, nil
}

// Advance raises the channel watermark to id. It never lowers it.
func (s *Sequencer) Advance(ctx context.Context, channel string, id int64) error {
	if err := s.store.SetWatermark(ctx, channel, id); err != nil {
		return fmt.Errorf("sequencer: %w", err)
	}
	return nil
}
