// Package sanitize cleans user-entered report text before it is
// stored. Report titles, descriptions, and notes are plain text, so
// every HTML construct is stripped rather than filtered.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text strips all markup from s and trims surrounding whitespace.
// Entities the stripper escapes on the way out are unescaped again so
// "AT&T" round-trips as "AT&T".
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}
