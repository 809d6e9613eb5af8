package normalize

import (
	"regexp"
	"strings"
)

var (
	// HH:MM:SS-mmm, optionally followed by a signed single digit zone suffix.
	reTimestamp  = regexp.MustCompile(`\d{2}:\d{2}:\d{2}-\d{3}(?:\s*[+-]\d)?`)
	reWhitespace = regexp.MustCompile(`\s{2,}`)
)

// DefaultBlockedMentions is used when no mention list is configured.
var DefaultBlockedMentions = []string{"@WatcherGuru"}

// StripTimestamps removes timestamp tokens, collapses whitespace runs and trims.
func StripTimestamps(text string) string {
	text = reTimestamp.ReplaceAllString(text, "")
	return CollapseWhitespace(text)
}

// CollapseWhitespace replaces every run of two or more whitespace characters
// with a single space and trims the result.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// MentionFilter removes a fixed set of mention tags by exact, case-sensitive match.
type MentionFilter struct {
	mentions []string
}

// NewMentionFilter builds a filter. Empty entries are ignored.
func NewMentionFilter(mentions []string) *MentionFilter {
	f := &MentionFilter{}
	for _, m := range mentions {
		if m != "" {
			f.mentions = append(f.mentions, m)
		}
	}
	return f
}

// Remove deletes every occurrence of each blocked mention, then trims.
func (f *MentionFilter) Remove(text string) string {
	for _, m := range f.mentions {
		text = strings.ReplaceAll(text, m, "")
	}
	return strings.TrimSpace(text)
}

// Mentions returns the blocked mentions.
func (f *MentionFilter) Mentions() []string {
	return append([]string(nil), f.mentions...)
}
