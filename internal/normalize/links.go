package normalize

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"chanrelay/internal/domain"
)

// URLPattern matches a bare http(s) link up to the next whitespace.
var URLPattern = regexp.MustCompile(`https?://\S+`)

// ExtractLinks returns the links of a post: "url" entities first, in entity
// order, then any further URLPattern matches of the plain text. The result
// never holds the same link twice.
func ExtractLinks(text string, entities []domain.Entity) []string {
	var links []string
	seen := make(map[string]bool)
	add := func(link string) {
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	}

	var units []uint16
	for _, ent := range entities {
		if ent.Kind != domain.EntityURL {
			continue
		}
		if units == nil {
			units = utf16.Encode([]rune(text))
		}
		if link, ok := sliceUTF16(units, ent.Offset, ent.Length); ok {
			add(link)
		}
	}
	for _, link := range URLPattern.FindAllString(text, -1) {
		add(link)
	}
	return links
}

// SliceUTF16 returns text[offset:offset+length] with both bounds counted in
// UTF-16 code units, the unit Telegram uses for entity offsets.
func SliceUTF16(text string, offset, length int) (string, bool) {
	return sliceUTF16(utf16.Encode([]rune(text)), offset, length)
}

func sliceUTF16(units []uint16, offset, length int) (string, bool) {
	if offset < 0 || length < 0 || offset+length > len(units) {
		return "", false
	}
	return string(utf16.Decode(units[offset : offset+length])), true
}

// AppendLinks appends each link on its own line after body.
func AppendLinks(body string, links []string) string {
	if len(links) == 0 {
		return body
	}
	return body + "\n" + strings.Join(links, "\n")
}
