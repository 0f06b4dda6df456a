// Package xmldom provides a small namespace-aware mutable XML tree.
//
// The standard encoding/xml decoder resolves namespace prefixes to
// URIs while tokenizing; this package keeps that resolved form, so all
// matching is done on (namespace URI, local name) pairs and the
// prefixes a server happened to use are never significant.
package xmldom

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Node is either *Element or *Text.
type Node interface {
	isNode()
}

// Text is a run of character data.
type Text struct {
	Data string
}

func (*Text) isNode() {}

// Element is one XML element. Name.Space holds the namespace URI, not
// a prefix.
type Element struct {
	Name     xml.Name
	Attrs    []xml.Attr
	children []Node
	parent   *Element
}

func (*Element) isNode() {}

// Document is an owned XML tree plus the URI it was retrieved from,
// used as the base for resolving relative references.
type Document struct {
	Root    *Element
	BaseURI *url.URL
}

// NewElement creates a detached element in the given namespace.
func NewElement(space, local string) *Element {
	return &Element{Name: xml.Name{Space: space, Local: local}}
}

// NewDocument creates a document around a detached root element.
func NewDocument(root *Element) *Document {
	return &Document{Root: root}
}

// Parse reads an XML document from r. Comments, processing
// instructions and directives are dropped; namespace declarations are
// consumed by the decoder and re-synthesized on output.
func Parse(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	var root *Element
	var stack []*Element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				el.Attrs = append(el.Attrs, a)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parsing XML: multiple root elements")
				}
				root = el
			} else {
				stack[len(stack)-1].AppendChild(el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].AppendText(string(t))
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("parsing XML: no root element")
	}
	return &Document{Root: root}, nil
}

// Children returns the raw child node list.
func (e *Element) Children() []Node { return e.children }

// Parent returns the parent element, or nil for a root or detached
// element.
func (e *Element) Parent() *Element { return e.parent }

// AppendChild attaches child as the last child of e.
func (e *Element) AppendChild(child *Element) {
	child.parent = e
	e.children = append(e.children, child)
}

// AppendText appends a text node.
func (e *Element) AppendText(s string) {
	e.children = append(e.children, &Text{Data: s})
}

// RemoveChild detaches child from e. Removing a node that is not a
// child is a no-op.
func (e *Element) RemoveChild(child *Element) {
	for i, n := range e.children {
		if el, ok := n.(*Element); ok && el == child {
			e.children = append(e.children[:i], e.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Remove detaches e from its parent.
func (e *Element) Remove() {
	if e.parent != nil {
		e.parent.RemoveChild(e)
	}
}

// ChildElements returns all element children in order.
func (e *Element) ChildElements() []*Element {
	var out []*Element
	for _, n := range e.children {
		if el, ok := n.(*Element); ok {
			out = append(out, el)
		}
	}
	return out
}

// Elements returns the child elements matching the namespace URI and
// local name.
func (e *Element) Elements(space, local string) []*Element {
	var out []*Element
	for _, n := range e.children {
		if el, ok := n.(*Element); ok && el.Name.Space == space && el.Name.Local == local {
			out = append(out, el)
		}
	}
	return out
}

// Element returns the first child element matching the namespace URI
// and local name, or nil.
func (e *Element) Element(space, local string) *Element {
	for _, n := range e.children {
		if el, ok := n.(*Element); ok && el.Name.Space == space && el.Name.Local == local {
			return el
		}
	}
	return nil
}

// RemoveElements removes every child element matching the namespace
// URI and local name.
func (e *Element) RemoveElements(space, local string) {
	kept := e.children[:0]
	for _, n := range e.children {
		if el, ok := n.(*Element); ok && el.Name.Space == space && el.Name.Local == local {
			el.parent = nil
			continue
		}
		kept = append(kept, n)
	}
	e.children = kept
}

// Text returns the concatenated character data of e and its
// descendants.
func (e *Element) Text() string {
	var sb strings.Builder
	e.writeText(&sb)
	return sb.String()
}

func (e *Element) writeText(sb *strings.Builder) {
	for _, n := range e.children {
		switch t := n.(type) {
		case *Text:
			sb.WriteString(t.Data)
		case *Element:
			t.writeText(sb)
		}
	}
}

// SetText replaces all children of e with a single text node.
func (e *Element) SetText(s string) {
	for _, n := range e.children {
		if el, ok := n.(*Element); ok {
			el.parent = nil
		}
	}
	e.children = []Node{&Text{Data: s}}
}

// Attr returns the value of the unprefixed attribute with the given
// local name, or "".
func (e *Element) Attr(local string) string {
	for _, a := range e.Attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// HasAttr reports whether the unprefixed attribute exists, letting
// callers distinguish an absent attribute from an empty one.
func (e *Element) HasAttr(local string) bool {
	for _, a := range e.Attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return true
		}
	}
	return false
}

// AttrNS returns the value of a namespaced attribute (for example
// xml:base, whose namespace the decoder reports as "xml").
func (e *Element) AttrNS(space, local string) string {
	for _, a := range e.Attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// SetAttr sets or replaces an unprefixed attribute.
func (e *Element) SetAttr(local, value string) {
	for i, a := range e.Attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: local}, Value: value})
}

// RemoveAttr deletes an unprefixed attribute if present.
func (e *Element) RemoveAttr(local string) {
	for i, a := range e.Attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy of e, detached from any parent.
func (e *Element) Clone() *Element {
	cp := &Element{Name: e.Name, Attrs: append([]xml.Attr(nil), e.Attrs...)}
	for _, n := range e.children {
		switch t := n.(type) {
		case *Text:
			cp.AppendText(t.Data)
		case *Element:
			cp.AppendChild(t.Clone())
		}
	}
	return cp
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	cp := &Document{BaseURI: d.BaseURI}
	if d.Root != nil {
		cp.Root = d.Root.Clone()
	}
	return cp
}

// ResolveURL resolves ref against the base URI in effect at el,
// honoring xml:base attributes on el and its ancestors. An empty ref
// resolves to "". If no absolute base is available the reference is
// returned unchanged.
func (d *Document) ResolveURL(el *Element, ref string) string {
	if ref == "" {
		return ""
	}
	base := d.BaseURI
	var chain []*Element
	for e := el; e != nil; e = e.parent {
		chain = append(chain, e)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if xb := chain[i].AttrNS("xml", "base"); xb != "" {
			base = resolveRef(base, xb)
		}
	}
	resolved := resolveRef(base, ref)
	if resolved == nil {
		return ref
	}
	return resolved.String()
}

func resolveRef(base *url.URL, ref string) *url.URL {
	u, err := url.Parse(ref)
	if err != nil {
		return base
	}
	if base == nil {
		if u.IsAbs() {
			return u
		}
		return nil
	}
	return base.ResolveReference(u)
}
