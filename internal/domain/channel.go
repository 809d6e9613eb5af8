package domain

import "context"

// Source is a platform that produces inbound channel posts (Telegram).
type Source interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}
