// Package normalize holds the pure text transforms applied to a channel post
// before it is relayed: markup to markdown, link extraction, timestamp and
// mention stripping, and duplicate link collapsing.
package normalize

import (
	"html"
	"regexp"

	"chanrelay/internal/domain"
)

var (
	reAnchor = regexp.MustCompile(`<a href="([^"]+)">(.*?)</a>`)
	reTag    = regexp.MustCompile(`<[^>]+>`)
)

// ToMarkdown converts HTML-flavored markup into Discord-style markdown.
// Anchors become [label](url), every other tag is dropped, and character
// references are unescaped last.
func ToMarkdown(markup string) string {
	md := reAnchor.ReplaceAllString(markup, "[$2]($1)")
	md = reTag.ReplaceAllString(md, "")
	return html.UnescapeString(md)
}

// Compose builds the relay body of msg: the markdown rendering of its markup
// when present, otherwise the plain text, followed by its extracted links.
// fromMarkup reports which rendering was used.
func Compose(msg domain.InboundMessage) (content string, fromMarkup bool) {
	body := msg.Text
	if msg.Markup != nil {
		body = ToMarkdown(*msg.Markup)
		fromMarkup = true
	}
	return AppendLinks(body, ExtractLinks(msg.Text, msg.Entities)), fromMarkup
}
