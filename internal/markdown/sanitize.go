// Package markdown renders assistant text as HTML. Code spans are lifted out
// into a token table before any structural formatting and put back verbatim
// afterwards.
package markdown

import "strings"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape replaces the markup-significant characters & < > " ' with entities.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}
