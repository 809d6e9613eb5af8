package store

import (
	"context"
	"sync"
	"time"

	"chanrelay/internal/domain"
)

// MemoryStore keeps watermarks and the delivery log in process memory.
// It is used when no database path is configured; state is lost on restart.
type MemoryStore struct {
	mu         sync.Mutex
	watermarks map[string]int64
	deliveries []domain.DeliveryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{watermarks: make(map[string]int64)}
}

func (m *MemoryStore) Watermark(_ context.Context, channel string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermarks[channel], nil
}

func (m *MemoryStore) SetWatermark(_ context.Context, channel string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id > m.watermarks[channel] {
		m.watermarks[channel] = id
	}
	return nil
}

func (m *MemoryStore) RecordDelivery(_ context.Context, rec domain.DeliveryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, rec)
	return nil
}

func (m *MemoryStore) Deliveries(_ context.Context, channel string, messageID int64) ([]domain.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DeliveryRecord
	for _, rec := range m.deliveries {
		if rec.Channel == channel && rec.MessageID == messageID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.deliveries[:0]
	var removed int64
	for _, rec := range m.deliveries {
		if rec.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	m.deliveries = kept
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }
