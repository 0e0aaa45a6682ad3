package payment

import (
	"strings"

	"golang.org/x/net/html"
)

// sanitizeMessage strips all markup from a processor supplied message
// except a minimal display subset. Attributes are dropped even on allowed
// tags, and text content is re-escaped.
func sanitizeMessage(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.WriteString(html.EscapeString(string(z.Text())))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "b", "i", "em":
				b.WriteString("<" + string(name) + ">")
			case "br":
				b.WriteString("<br/>")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "b", "i", "em":
				b.WriteString("</" + string(name) + ">")
			}
		}
	}
}
