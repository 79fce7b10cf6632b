package correlation

import (
	"regexp"
	"strings"
)

var tagLine = regexp.MustCompile(`^#([a-z0-9]+)$`)

// Tag prefixes text with the identity marker: "#<id>\n<text>".
func Tag(id, text string) string {
	return "#" + id + "\n" + text
}

// ParseTag recovers the identity from the leading line of a tagged message.
func ParseTag(text string) (string, bool) {
	first, _, _ := strings.Cut(text, "\n")
	m := tagLine.FindStringSubmatch(strings.TrimSpace(first))
	if m == nil {
		return "", false
	}
	return m[1], true
}
