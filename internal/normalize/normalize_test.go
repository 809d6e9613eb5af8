package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanrelay/internal/domain"
)

func TestToMarkdown(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"anchor", `<a href="http://x.com">Click</a>`, "[Click](http://x.com)"},
		{"anchor among text", `Read <a href="https://e.com/a?b=1&amp;c=2">this</a> now`, "Read [this](https://e.com/a?b=1&c=2) now"},
		{"strips tags", "<b>bold</b> and <i>italic</i>", "bold and italic"},
		{"unescapes after stripping", "<b>a &amp; b</b> &lt;3", "a & b <3"},
		{"plain text untouched", "nothing to do", "nothing to do"},
		{"two anchors", `<a href="http://a">A</a> <a href="http://b">B</a>`, "[A](http://a) [B](http://b)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToMarkdown(tc.in))
		})
	}
}

func TestToMarkdown_NoAnchorsEqualsStrippedUnescaped(t *testing.T) {
	inputs := []string{
		"<u>under</u> &quot;quoted&quot;",
		"<pre>code</pre>\n<code>x</code>",
		"&#39;single&#39; <s>gone</s>",
	}
	for _, in := range inputs {
		want := strings.NewReplacer("&quot;", `"`, "&#39;", "'").Replace(reTag.ReplaceAllString(in, ""))
		assert.Equal(t, want, ToMarkdown(in), in)
	}
}

func TestExtractLinks_EntitiesFirst(t *testing.T) {
	text := "see https://b.com and https://a.com"
	entities := []domain.Entity{
		{Offset: 22, Length: 13, Kind: domain.EntityURL},
		{Offset: 0, Length: 3, Kind: domain.EntityBold},
	}

	links := ExtractLinks(text, entities)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, links)
}

func TestExtractLinks_NoDuplicates(t *testing.T) {
	text := "https://a.com https://a.com https://b.com"
	entities := []domain.Entity{
		{Offset: 0, Length: 13, Kind: domain.EntityURL},
		{Offset: 14, Length: 13, Kind: domain.EntityURL},
	}

	links := ExtractLinks(text, entities)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, links)
}

func TestExtractLinks_UTF16Offsets(t *testing.T) {
	text := "😀 https://e.com"
	entities := []domain.Entity{{Offset: 3, Length: 13, Kind: domain.EntityURL}}

	links := ExtractLinks(text, entities)
	require.Len(t, links, 1)
	assert.Equal(t, "https://e.com", links[0])
}

func TestExtractLinks_BadEntitySkipped(t *testing.T) {
	text := "go to https://e.com"
	entities := []domain.Entity{{Offset: 10, Length: 100, Kind: domain.EntityURL}}

	assert.Equal(t, []string{"https://e.com"}, ExtractLinks(text, entities))
}

func TestExtractLinks_TextLinkIgnored(t *testing.T) {
	entities := []domain.Entity{{Offset: 0, Length: 5, Kind: domain.EntityTextLink, URL: "https://hidden"}}
	assert.Empty(t, ExtractLinks("Click", entities))
}

func TestAppendLinks(t *testing.T) {
	assert.Equal(t, "body", AppendLinks("body", nil))
	assert.Equal(t, "body\nhttp://a\nhttp://b", AppendLinks("body", []string{"http://a", "http://b"}))
}

func TestStripTimestamps(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a 14:02:11-123 +1 b", "a b"},
		{"a 14:02:11-123+0 b", "a b"},
		{"x 12:34:56-123-5 y", "x y"},
		{"glued12:34:56-789text", "gluedtext"},
		{"  lead\t\ttrail  ", "lead trail"},
		{"line\nbreak", "line\nbreak"},
		{"line\n\nbreak", "line break"},
		{"12:34:56-12 short millis", "12:34:56-12 short millis"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StripTimestamps(tc.in), tc.in)
	}
}

func TestMentionFilter_Remove(t *testing.T) {
	f := NewMentionFilter(DefaultBlockedMentions)
	assert.Equal(t, "big news", f.Remove("@WatcherGuru big news"))
	assert.Equal(t, "@watcherguru stays", f.Remove("@watcherguru stays"))
	assert.Equal(t, "a  b", f.Remove(" a @WatcherGuru b@WatcherGuru"))
}

func TestMentionFilter_Multiple(t *testing.T) {
	f := NewMentionFilter([]string{"@one", "", "@two"})
	assert.Equal(t, []string{"@one", "@two"}, f.Mentions())
	assert.Equal(t, "x  y", f.Remove("@one x @two y"))
}

func TestCollapseDuplicateLinks(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"keeps first", "a http://L.com b http://L.com c", "a http://L.com b c"},
		{"three copies", "http://y.com x http://y.com\nhttp://y.com", "http://y.com x"},
		{"distinct links", "http://a.com http://b.com", "http://a.com http://b.com"},
		{"no partial match", "http://x.com http://x.com/page http://x.com", "http://x.com http://x.com/page"},
		{"single link", "only http://a.com  here", "only http://a.com here"},
		{"no links", "plain", "plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CollapseDuplicateLinks(tc.in))
		})
	}
}

func TestCollapseDuplicateLinks_ExactlyOnce(t *testing.T) {
	link := "https://news.example/item?id=7"
	out := CollapseDuplicateLinks("first " + link + " middle " + link + " end")
	assert.Equal(t, 1, strings.Count(out, link))
	assert.Equal(t, "first "+link+" middle end", out)
}

func TestCompose(t *testing.T) {
	markup := `<b>Breaking</b> <a href="https://x.com/a">story</a>`
	msg := domain.InboundMessage{
		Text:     "Breaking story https://t.me/c",
		Markup:   &markup,
		Entities: []domain.Entity{{Offset: 15, Length: 14, Kind: domain.EntityURL}},
	}

	content, fromMarkup := Compose(msg)
	assert.True(t, fromMarkup)
	assert.Equal(t, "Breaking [story](https://x.com/a)\nhttps://t.me/c", content)

	msg.Markup = nil
	content, fromMarkup = Compose(msg)
	assert.False(t, fromMarkup)
	assert.Equal(t, "Breaking story https://t.me/c\nhttps://t.me/c", content)
}

func TestCompose_NoLinks(t *testing.T) {
	content, _ := Compose(domain.InboundMessage{Text: "plain"})
	assert.Equal(t, "plain", content)
}
