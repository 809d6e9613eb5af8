package channel

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf16"

	"chanrelay/internal/domain"
)

type span struct {
	start, end int
	ent        domain.Entity
}

// RenderHTML renders text and its entities as Telegram-flavored HTML. Offsets
// are UTF-16 code units. Plain "url" entities stay plain text; spans that are
// out of range or split a surrogate pair are an error.
func RenderHTML(text string, entities []domain.Entity) (string, error) {
	units := utf16.Encode([]rune(text))

	var spans []span
	for _, ent := range entities {
		if openTag(ent) == "" || ent.Length == 0 {
			continue
		}
		start, end := ent.Offset, ent.Offset+ent.Length
		if start < 0 || ent.Length < 0 || end > len(units) {
			return "", fmt.Errorf("entity %s [%d,%d) outside text of %d units", ent.Kind, start, end, len(units))
		}
		if splitsPair(units, start) || splitsPair(units, end) {
			return "", fmt.Errorf("entity %s [%d,%d) splits a surrogate pair", ent.Kind, start, end)
		}
		spans = append(spans, span{start: start, end: end, ent: ent})
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	var b strings.Builder
	var stack []span
	next := 0

	closeAt := func(pos int) {
		lowest := -1
		for i, s := range stack {
			if s.end == pos {
				lowest = i
				break
			}
		}
		if lowest < 0 {
			return
		}
		var reopen []span
		for len(stack) > lowest {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			b.WriteString(closeTag(top.ent))
			if top.end != pos {
				reopen = append(reopen, top)
			}
		}
		for i := len(reopen) - 1; i >= 0; i-- {
			b.WriteString(openTag(reopen[i].ent))
			stack = append(stack, reopen[i])
		}
	}

	for pos := 0; pos <= len(units); {
		closeAt(pos)
		for next < len(spans) && spans[next].start == pos {
			b.WriteString(openTag(spans[next].ent))
			stack = append(stack, spans[next])
			next++
		}
		if pos == len(units) {
			break
		}
		width := 1
		if utf16.IsSurrogate(rune(units[pos])) && pos+1 < len(units) {
			width = 2
		}
		b.WriteString(html.EscapeString(string(utf16.Decode(units[pos : pos+width]))))
		pos += width
	}
	return b.String(), nil
}

func splitsPair(units []uint16, pos int) bool {
	if pos <= 0 || pos >= len(units) {
		return false
	}
	r := rune(units[pos-1])
	return r >= 0xD800 && r < 0xDC00
}

func openTag(ent domain.Entity) string {
	switch ent.Kind {
	case domain.EntityBold:
		return "<b>"
	case domain.EntityItalic:
		return "<i>"
	case domain.EntityUnderline:
		return "<u>"
	case domain.EntityStrikethrough:
		return "<s>"
	case domain.EntitySpoiler:
		return `<span class="tg-spoiler">`
	case domain.EntityCode:
		return "<code>"
	case domain.EntityPre:
		return "<pre>"
	case domain.EntityBlockquote:
		return "<blockquote>"
	case domain.EntityTextLink:
		if ent.URL == "" {
			return ""
		}
		return `<a href="` + html.EscapeString(ent.URL) + `">`
	}
	return ""
}

func closeTag(ent domain.Entity) string {
	switch ent.Kind {
	case domain.EntityBold:
		return "</b>"
	case domain.EntityItalic:
		return "</i>"
	case domain.EntityUnderline:
		return "</u>"
	case domain.EntityStrikethrough:
		return "</s>"
	case domain.EntitySpoiler:
		return "</span>"
	case domain.EntityCode:
		return "</code>"
	case domain.EntityPre:
		return "</pre>"
	case domain.EntityBlockquote:
		return "</blockquote>"
	case domain.EntityTextLink:
		return "</a>"
	}
	return ""
}
