package domain

import (
	"context"
	"time"
)

// WatermarkStore holds the last accepted message id per channel.
type WatermarkStore interface {
	Watermark(ctx context.Context, channel string) (int64, error)
	SetWatermark(ctx context.Context, channel string, id int64) error
}

// DeliveryRecord is one dispatch attempt.
type DeliveryRecord struct {
	ID          string
	Channel     string
	MessageID   int64
	Destination string
	Kind        DestinationKind
	OK          bool
	Error       string
	CreatedAt   time.Time
}

// DeliveryLog persists dispatch attempts.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, rec DeliveryRecord) error
}
