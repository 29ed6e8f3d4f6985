package telegram

import "strings"

// Messages use HTML parse mode, so anything interpolated from build output,
// filenames, or config has to be escaped before it reaches the API.

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// Escape neutralizes HTML metacharacters in untrusted text.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

// Bold wraps escaped text in bold tags.
func Bold(s string) string {
	return "<b>" + Escape(s) + "</b>"
}

// Code wraps escaped text in inline-code tags.
func Code(s string) string {
	return "<code>" + Escape(s) + "</code>"
}

// Link renders an anchor. The text is escaped; the URL is emitted verbatim
// and must come from a trusted source.
func Link(text, url string) string {
	return `<a href="` + url + `">` + Escape(text) + "</a>"
}
