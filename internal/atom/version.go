package atom

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/postwing/blogclient/internal/blog"
	"github.com/postwing/blogclient/internal/xmldom"
)

// Namespace URIs shared across protocol dialects.
const (
	xhtmlNS    = "http://www.w3.org/1999/xhtml"
	dcNS       = "http://purl.org/dc/elements/1.1/"
	featuresNS = "http://purl.org/atompub/features/1.0"
)

// ProtocolVersion is the per-dialect strategy for the parts of the
// wire format that changed between Atom 0.3, Atom 1.0 and the draft
// variants: namespace URIs, timestamp element names, text-construct
// encoding, and category element handling.
//
// The set of dialects is closed; the four package-level singletons are
// the only implementations.
type ProtocolVersion interface {
	String() string

	NamespaceURI() string
	PubNamespaceURI() string
	UpdatedElementName() string
	PublishedElementName() string

	// CreateCategoryElement builds a detached category element. A nil
	// scheme is rejected by the Atom 1.0 family.
	CreateCategoryElement(term string, scheme *string, label string) (*xmldom.Element, error)
	// RemoveCategories strips category elements belonging to scheme
	// from the entry. Scheme comparison is exact string equality; a
	// nil scheme removes nothing in the Atom 1.0 family.
	RemoveCategories(entry *xmldom.Element, scheme *string)
	// ExtractCategories returns the categories of the entry belonging
	// to scheme.
	ExtractCategories(entry *xmldom.Element, scheme *string) []blog.Category

	// DecodeText interprets a text-construct element (content, title,
	// summary) into a kind-tagged value. Unrecognized or absent type
	// information falls back per dialect rules; it is never an error.
	DecodeText(el *xmldom.Element) ContentValue
	// EncodeHTML builds a content element carrying HTML. A single
	// trailing space is appended to the stored markup; some hosted
	// parsers choke without it.
	EncodeHTML(html string) *xmldom.Element
	// EncodePlaintext builds a content element carrying plain text.
	EncodePlaintext(text string) *xmldom.Element
}

// The protocol dialect singletons. Exactly one is active per client
// and is used consistently for every entry operation of that client.
var (
	V03             ProtocolVersion = atom03{}
	V10             ProtocolVersion = atom10{}
	V10Draft        ProtocolVersion = atom10Draft{}
	V10DraftBlogger ProtocolVersion = atom10DraftBlogger{}
)

// ---- Atom 0.3 ----

type atom03 struct{}

func (atom03) String() string               { return "Atom03" }
func (atom03) NamespaceURI() string         { return "http://purl.org/atom/ns#" }
func (atom03) PubNamespaceURI() string      { return "http://example.net/appns/" }
func (atom03) UpdatedElementName() string   { return "modified" }
func (atom03) PublishedElementName() string { return "issued" }

func (atom03) CreateCategoryElement(term string, scheme *string, label string) (*xmldom.Element, error) {
	el := xmldom.NewElement(dcNS, "subject")
	el.SetText(term)
	return el, nil
}

func (atom03) RemoveCategories(entry *xmldom.Element, scheme *string) {
	// Atom 0.3 has no category scheme concept; dc:subject elements
	// are removed wholesale.
	entry.RemoveElements(dcNS, "subject")
}

func (atom03) ExtractCategories(entry *xmldom.Element, scheme *string) []blog.Category {
	var out []blog.Category
	for _, el := range entry.Elements(dcNS, "subject") {
		subject := el.Text()
		if subject == "" {
			continue
		}
		out = append(out, blog.Category{Term: subject, Label: subject})
	}
	return out
}

func (v atom03) DecodeText(el *xmldom.Element) ContentValue {
	typ := el.Attr("type")
	mode := el.Attr("mode")
	if mode == "" {
		mode = "xml"
	}

	var content string
	switch mode {
	case "escaped":
		content = el.Text()
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(el.Text())
		if err == nil {
			content = string(decoded)
		}
	default: // "xml"
		content = el.InnerXML()
		if typ == "" && len(el.ChildElements()) > 0 {
			typ = "application/xhtml+xml"
		}
	}

	switch typ {
	case "text/html":
		return ContentValue{Kind: HTML, Value: content}
	case "application/xhtml+xml":
		if mode == "xml" {
			if div := el.Element(xhtmlNS, "div"); div != nil {
				return ContentValue{Kind: XHTML, Value: div.InnerXML()}
			}
			return ContentValue{Kind: XHTML, Value: ""}
		}
		return ContentValue{Kind: XHTML, Value: content}
	default: // "text/plain" and anything unrecognized
		return ContentValue{Kind: PlainText, Value: content}
	}
}

func (v atom03) EncodeHTML(html string) *xmldom.Element {
	el := xmldom.NewElement(v.NamespaceURI(), "content")
	el.SetAttr("type", "text/html")
	el.SetAttr("mode", "escaped")
	el.SetText(html + " ")
	return el
}

func (v atom03) EncodePlaintext(text string) *xmldom.Element {
	el := xmldom.NewElement(v.NamespaceURI(), "content")
	el.SetAttr("type", "text/plain")
	el.SetAttr("mode", "escaped")
	el.SetText(text)
	return el
}

// ---- Atom 1.0 ----

type atom10 struct{}

func (atom10) String() string               { return "Atom10" }
func (atom10) NamespaceURI() string         { return "http://www.w3.org/2005/Atom" }
func (atom10) PubNamespaceURI() string      { return "http://www.w3.org/2007/app" }
func (atom10) UpdatedElementName() string   { return "updated" }
func (atom10) PublishedElementName() string { return "published" }

func (v atom10) CreateCategoryElement(term string, scheme *string, label string) (*xmldom.Element, error) {
	if scheme == nil {
		return nil, fmt.Errorf("nil category scheme not supported")
	}
	el := xmldom.NewElement(v.NamespaceURI(), "category")
	el.SetAttr("term", term)
	if *scheme != "" {
		el.SetAttr("scheme", *scheme)
	}
	el.SetAttr("label", label)
	return el, nil
}

func (v atom10) RemoveCategories(entry *xmldom.Element, scheme *string) {
	if scheme == nil {
		return
	}
	for _, el := range entry.Elements(v.NamespaceURI(), "category") {
		if el.Attr("scheme") == *scheme {
			entry.RemoveChild(el)
		}
	}
}

func (v atom10) ExtractCategories(entry *xmldom.Element, scheme *string) []blog.Category {
	if scheme == nil {
		return nil
	}
	var out []blog.Category
	for _, el := range entry.Elements(v.NamespaceURI(), "category") {
		if el.Attr("scheme") != *scheme {
			continue
		}
		term := el.Attr("term")
		label := el.Attr("label")
		if term == "" && label == "" {
			continue
		}
		if term == "" {
			term = label
		}
		if label == "" {
			label = term
		}
		out = append(out, blog.Category{Term: term, Label: label, Scheme: *scheme})
	}
	return out
}

func (atom10) DecodeText(el *xmldom.Element) ContentValue {
	typ := "text"
	if el.HasAttr("type") {
		typ = el.Attr("type")
	}
	switch typ {
	case "html":
		return ContentValue{Kind: HTML, Value: strings.TrimSpace(el.Text())}
	case "xhtml":
		if div := el.Element(xhtmlNS, "div"); div != nil {
			return ContentValue{Kind: XHTML, Value: div.InnerXML()}
		}
		return ContentValue{Kind: XHTML, Value: ""}
	default: // "text" and anything unrecognized
		return ContentValue{Kind: PlainText, Value: strings.TrimSpace(el.Text())}
	}
}

func (v atom10) EncodeHTML(html string) *xmldom.Element {
	el := xmldom.NewElement(v.NamespaceURI(), "content")
	el.SetAttr("type", "html")
	el.SetText(html + " ")
	return el
}

func (v atom10) EncodePlaintext(text string) *xmldom.Element {
	el := xmldom.NewElement(v.NamespaceURI(), "content")
	el.SetAttr("type", "text")
	el.SetText(text)
	return el
}

// ---- Atom 1.0 draft (pre-RFC app namespace) ----

type atom10Draft struct{ atom10 }

func (atom10Draft) String() string          { return "Atom10Draft" }
func (atom10Draft) PubNamespaceURI() string { return "http://purl.org/atom/app#" }

// ---- Atom 1.0 draft, Blogger flavor ----

// Blogger rejects entries whose categories carry a label attribute, so
// this dialect strips it after the base behavior runs.
type atom10DraftBlogger struct{ atom10Draft }

func (atom10DraftBlogger) String() string { return "Atom10DraftBlogger" }

func (v atom10DraftBlogger) CreateCategoryElement(term string, scheme *string, label string) (*xmldom.Element, error) {
	el, err := v.atom10Draft.CreateCategoryElement(term, scheme, label)
	if err != nil {
		return nil, err
	}
	el.RemoveAttr("label")
	return el, nil
}
