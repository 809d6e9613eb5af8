package normalize

import "strings"

// CollapseDuplicateLinks keeps the first occurrence of every distinct link
// and removes the later ones. Links are compared as whole URLPattern tokens,
// so http://x.com never matches inside http://x.com/page.
func CollapseDuplicateLinks(text string) string {
	spans := URLPattern.FindAllStringIndex(text, -1)
	if len(spans) < 2 {
		return CollapseWhitespace(text)
	}

	kept := make(map[string]bool, len(spans))
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, span := range spans {
		link := text[span[0]:span[1]]
		if !kept[link] {
			kept[link] = true
			continue
		}
		b.WriteString(text[last:span[0]])
		last = span[1]
	}
	b.WriteString(text[last:])
	return CollapseWhitespace(b.String())
}
