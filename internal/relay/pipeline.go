package relay

import (
	"log/slog"

	"chanrelay/internal/domain"
	"chanrelay/internal/normalize"
)

// Pipeline turns an inbound post into the content relayed to destinations.
type Pipeline struct {
	mentions *normalize.MentionFilter
	logger   *slog.Logger
}

func NewPipeline(blockedMentions []string, logger *slog.Logger) *Pipeline {
	return &Pipeline{mentions: normalize.NewMentionFilter(blockedMentions), logger: logger}
}

// Process composes markdown plus links, strips timestamps and blocked
// mentions, then collapses repeated links. An empty result means "discard".
func (p *Pipeline) Process(msg domain.InboundMessage) string {
	content, fromMarkup := normalize.Compose(msg)
	if !fromMarkup {
		p.logger.Debug("no markup available, using plain text",
			"channel", msg.Channel,
			"message_id", msg.ID,
			"err", domain.ErrMarkupConversion,
		)
	}
	content = normalize.StripTimestamps(content)
	content = p.mentions.Remove(content)
	return normalize.CollapseDuplicateLinks(content)
}
