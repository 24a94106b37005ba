// Package htmlsanitize strips markup from user-supplied text before it is stored.
//
// Titles and links arrive from the presentation layer and from the
// submission feed; both are rendered elsewhere, so only plain text is kept.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every element and attribute.
var strict = bluemonday.StrictPolicy()

// PlainText returns s with all HTML removed, entities decoded and
// surrounding whitespace trimmed.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether s contains no markup.
func IsPlainText(s string) bool {
	return !strings.ContainsAny(s, "<>")
}
