package atom

import (
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
)

// ContentKind classifies the text construct carried by an Atom element.
type ContentKind int

const (
	PlainText ContentKind = iota
	HTML
	XHTML
)

// ContentValue is a decoded Atom text construct: the kind the server
// declared plus the raw value in that kind's own representation.
type ContentValue struct {
	Kind  ContentKind
	Value string
}

// HTML returns the value as HTML markup.
func (v ContentValue) HTML() string {
	switch v.Kind {
	case PlainText:
		return plaintextToHTML(v.Value)
	default:
		return v.Value
	}
}

// Plaintext returns the value with markup stripped and entities
// decoded.
func (v ContentValue) Plaintext() string {
	switch v.Kind {
	case PlainText:
		return v.Value
	default:
		return htmlToPlaintext(v.Value)
	}
}

func plaintextToHTML(s string) string {
	escaped := html.EscapeString(s)
	return strings.ReplaceAll(escaped, "\n", "<br />")
}

// htmlToPlaintext extracts the text content of an HTML fragment,
// dropping tags and script/style bodies.
func htmlToPlaintext(s string) string {
	var sb strings.Builder
	tz := xhtml.NewTokenizer(strings.NewReader(s))
	skipDepth := 0
	for {
		switch tz.Next() {
		case xhtml.ErrorToken:
			return sb.String()
		case xhtml.StartTagToken:
			name, _ := tz.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case xhtml.EndTagToken:
			name, _ := tz.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case xhtml.TextToken:
			if skipDepth == 0 {
				sb.Write(tz.Text())
			}
		}
	}
}
