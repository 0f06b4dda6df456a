package xmldom

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Prefixes used for well-known namespaces on output. Anything else
// gets a generated ns1, ns2, ... prefix. Prefixes are cosmetic only;
// consumers match on URIs.
var preferredPrefixes = map[string]string{
	"http://www.w3.org/2005/Atom":      "atom",
	"http://purl.org/atom/ns#":         "atom",
	"http://www.w3.org/2007/app":       "app",
	"http://purl.org/atom/app#":        "app",
	"http://example.net/appns/":        "app",
	"http://www.w3.org/1999/xhtml":     "xhtml",
	"http://purl.org/dc/elements/1.1/": "dc",
}

// WriteTo writes the document with an XML declaration. The root
// element's namespace becomes the default namespace; every other
// namespace present in the tree is declared on the root.
func (d *Document) WriteTo(w io.Writer) error {
	if d.Root == nil {
		return fmt.Errorf("marshaling XML: document has no root element")
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	prefixes := assignPrefixes(d.Root)
	var sb strings.Builder
	writeElement(&sb, d.Root, prefixes, true)
	_, err := io.WriteString(w, sb.String())
	return err
}

// Marshal renders the document to a byte slice.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String renders the document without the XML declaration, for logs
// and error bodies.
func (d *Document) String() string {
	if d.Root == nil {
		return ""
	}
	return d.Root.String()
}

// String renders the element and its subtree.
func (e *Element) String() string {
	var sb strings.Builder
	writeElement(&sb, e, assignPrefixes(e), true)
	return sb.String()
}

// InnerXML renders the children of e with namespace prefixes and
// declarations stripped. It is intended for lifting embedded XHTML out
// as HTML text, where namespace fidelity is not wanted.
func (e *Element) InnerXML() string {
	var sb strings.Builder
	for _, n := range e.children {
		switch t := n.(type) {
		case *Text:
			if err := xml.EscapeText(&sb, []byte(t.Data)); err != nil {
				return ""
			}
		case *Element:
			writeElement(&sb, t, nil, false)
		}
	}
	return sb.String()
}

func assignPrefixes(root *Element) map[string]string {
	spaces := map[string]bool{}
	collectSpaces(root, spaces)
	prefixes := map[string]string{}
	if root.Name.Space != "" {
		prefixes[root.Name.Space] = "" // default namespace
	}
	var rest []string
	for s := range spaces {
		if s == "" || s == "xml" || s == root.Name.Space {
			continue
		}
		rest = append(rest, s)
	}
	sort.Strings(rest)
	n := 0
	used := map[string]bool{}
	for _, s := range rest {
		p := preferredPrefixes[s]
		if p == "" || used[p] {
			n++
			p = fmt.Sprintf("ns%d", n)
		}
		used[p] = true
		prefixes[s] = p
	}
	return prefixes
}

func collectSpaces(e *Element, spaces map[string]bool) {
	spaces[e.Name.Space] = true
	for _, a := range e.Attrs {
		spaces[a.Name.Space] = true
	}
	for _, n := range e.children {
		if el, ok := n.(*Element); ok {
			collectSpaces(el, spaces)
		}
	}
}

// writeElement serializes one element. When prefixes is nil the
// element is written namespace-blind (local names only). declare
// controls whether xmlns declarations are emitted; they only appear on
// the outermost element of a serialization.
func writeElement(sb *strings.Builder, e *Element, prefixes map[string]string, declare bool) {
	name := qualify(e.Name, prefixes)
	sb.WriteByte('<')
	sb.WriteString(name)
	if declare && prefixes != nil {
		var decls []string
		for space, prefix := range prefixes {
			if prefix == "" {
				decls = append(decls, fmt.Sprintf(` xmlns=%q`, space))
			} else {
				decls = append(decls, fmt.Sprintf(` xmlns:%s=%q`, prefix, space))
			}
		}
		sort.Strings(decls)
		for _, d := range decls {
			sb.WriteString(d)
		}
	}
	if prefixes != nil && !declare && e.Name.Space == "" && rootHasDefault(prefixes) {
		// An element in no namespace nested under a default-namespace
		// root must undeclare the default.
		sb.WriteString(` xmlns=""`)
	}
	for _, a := range e.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(qualify(a.Name, prefixes))
		sb.WriteString(`="`)
		_ = xml.EscapeText(sb, []byte(a.Value))
		sb.WriteByte('"')
	}
	if len(e.children) == 0 {
		sb.WriteString("/>")
		return
	}
	sb.WriteByte('>')
	for _, n := range e.children {
		switch t := n.(type) {
		case *Text:
			_ = xml.EscapeText(sb, []byte(t.Data))
		case *Element:
			writeElement(sb, t, prefixes, false)
		}
	}
	sb.WriteString("</")
	sb.WriteString(name)
	sb.WriteByte('>')
}

func rootHasDefault(prefixes map[string]string) bool {
	for _, p := range prefixes {
		if p == "" {
			return true
		}
	}
	return false
}

func qualify(n xml.Name, prefixes map[string]string) string {
	if n.Space == "" || prefixes == nil {
		return n.Local
	}
	if n.Space == "xml" {
		return "xml:" + n.Local
	}
	p := prefixes[n.Space]
	if p == "" {
		return n.Local
	}
	return p + ":" + n.Local
}
