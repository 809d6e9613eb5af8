package domain

import "time"

// EntityKind is the Telegram entity type string ("url", "text_link", "bold", ...).
type EntityKind string

const (
	EntityURL           EntityKind = "url"
	EntityTextLink      EntityKind = "text_link"
	EntityBold          EntityKind = "bold"
	EntityItalic        EntityKind = "italic"
	EntityUnderline     EntityKind = "underline"
	EntityStrikethrough EntityKind = "strikethrough"
	EntitySpoiler       EntityKind = "spoiler"
	EntityCode          EntityKind = "code"
	EntityPre           EntityKind = "pre"
	EntityBlockquote    EntityKind = "blockquote"
)

// Entity marks a span of the plain text. Offset and Length count UTF-16 code units.
type Entity struct {
	Offset int
	Length int
	Kind   EntityKind
	URL    string // text_link target
}

// MediaKind tags the media variant carried by a message.
type MediaKind int

const (
	MediaNone MediaKind = iota
	MediaPhoto
	MediaDocument
)

func (k MediaKind) String() string {
	switch k {
	case MediaPhoto:
		return "photo"
	case MediaDocument:
		return "document"
	default:
		return "none"
	}
}

// Media references an attachment on the source platform. It is never fetched or forwarded.
type Media struct {
	Kind   MediaKind
	FileID string
}

// InboundMessage is one post read from a source channel.
type InboundMessage struct {
	ID        int64  // monotonic per channel
	Channel   string // channel key: "@username" or numeric chat id
	Text      string
	Markup    *string // rich rendering; nil when unavailable
	Entities  []Entity
	Media     Media
	Timestamp time.Time
}

// HasMarkup reports whether a rich rendering is attached.
func (m InboundMessage) HasMarkup() bool { return m.Markup != nil }
