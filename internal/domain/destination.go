package domain

import (
	"context"
	"sort"
)

// DestinationKind selects the delivery protocol for a destination.
type DestinationKind string

const (
	KindWebhook DestinationKind = "webhook"
	KindDiscord DestinationKind = "discord"
	KindSlack   DestinationKind = "slack"
)

// Destination is one outbound webhook endpoint.
type Destination struct {
	URL       string
	Kind      DestinationKind
	Name      string // optional label used in logs
	Username  string // optional display name override (discord, slack)
	AvatarURL string
}

// Label returns Name when set, otherwise the kind. Webhook URLs embed secrets and are not logged.
func (d Destination) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Kind == "" {
		return string(KindWebhook)
	}
	return string(d.Kind)
}

// Sender delivers content to a single destination.
type Sender interface {
	Send(ctx context.Context, dest Destination, content string) error
}

// ChannelMapping maps channel keys to their ordered destinations. It is immutable once built.
type ChannelMapping struct {
	routes map[string][]Destination
}

// NewChannelMapping copies routes into a new mapping.
func NewChannelMapping(routes map[string][]Destination) ChannelMapping {
	m := ChannelMapping{routes: make(map[string][]Destination, len(routes))}
	for key, dests := range routes {
		m.routes[key] = append([]Destination(nil), dests...)
	}
	return m
}

// Destinations returns a copy of the destinations configured for channel.
func (m ChannelMapping) Destinations(channel string) []Destination {
	return append([]Destination(nil), m.routes[channel]...)
}

// Has reports whether channel is configured.
func (m ChannelMapping) Has(channel string) bool {
	_, ok := m.routes[channel]
	return ok
}

// Channels returns the configured channel keys, sorted.
func (m ChannelMapping) Channels() []string {
	keys := make([]string, 0, len(m.routes))
	for k := range m.routes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of configured channels.
func (m ChannelMapping) Len() int { return len(m.routes) }
