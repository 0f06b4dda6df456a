package atom

import (
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/postwing/blogclient/internal/blog"
	"github.com/postwing/blogclient/internal/xmldom"
)

// Entry wraps one Atom entry element with typed accessors for the
// fields a blog post maps onto. Setters remove every existing element
// of the target name before inserting the new value, so repeated
// writes never accumulate duplicates.
type Entry struct {
	ver            ProtocolVersion
	categoryScheme *string
	doc            *xmldom.Document
	node           *xmldom.Element
}

// NewEntry binds an entry element inside doc. categoryScheme selects
// which category scheme the Categories accessors operate on; nil means
// the dialect's "no scheme" behavior.
func NewEntry(ver ProtocolVersion, categoryScheme *string, doc *xmldom.Document, node *xmldom.Element) *Entry {
	return &Entry{ver: ver, categoryScheme: categoryScheme, doc: doc, node: node}
}

// Node returns the underlying entry element.
func (e *Entry) Node() *xmldom.Element { return e.node }

// Document returns the document the entry belongs to.
func (e *Entry) Document() *xmldom.Document { return e.doc }

func (e *Entry) Title() string {
	return e.textPlaintext("title")
}

func (e *Entry) SetTitle(title string) {
	e.populateElement("title", title)
}

func (e *Entry) Excerpt() string {
	return e.textPlaintext("summary")
}

func (e *Entry) SetExcerpt(excerpt string) {
	e.populateElement("summary", excerpt)
}

// ContentHTML returns the entry content as HTML markup, or "" when the
// entry has no content element.
func (e *Entry) ContentHTML() string {
	el := e.node.Element(e.ver.NamespaceURI(), "content")
	if el == nil {
		return ""
	}
	return strings.TrimSuffix(e.ver.DecodeText(el).HTML(), " ")
}

func (e *Entry) SetContentHTML(html string) {
	e.node.RemoveElements(e.ver.NamespaceURI(), "content")
	e.node.AppendChild(e.ver.EncodeHTML(html))
}

// PublishDate returns the entry's publish timestamp, or the zero time
// when the element is absent or empty. A present but malformed value
// is an error.
func (e *Entry) PublishDate() (time.Time, error) {
	el := e.node.Element(e.ver.NamespaceURI(), e.ver.PublishedElementName())
	if el == nil {
		return time.Time{}, nil
	}
	val := strings.TrimSpace(el.Text())
	if val == "" {
		return time.Time{}, nil
	}
	return ParseRFC3339(val)
}

// SetPublishDate writes the publish timestamp. The zero time removes
// the element; absence, not a zero timestamp, means "no publish date".
func (e *Entry) SetPublishDate(t time.Time) {
	if t.IsZero() {
		e.node.RemoveElements(e.ver.NamespaceURI(), e.ver.PublishedElementName())
		return
	}
	e.populateElement(e.ver.PublishedElementName(), FormatRFC3339(t))
}

func (e *Entry) Categories() []blog.Category {
	return e.ver.ExtractCategories(e.node, e.categoryScheme)
}

func (e *Entry) ClearCategories() {
	e.ver.RemoveCategories(e.node, e.categoryScheme)
}

func (e *Entry) AddCategory(cat blog.Category) error {
	el, err := e.ver.CreateCategoryElement(cat.Term, e.categoryScheme, cat.Label)
	if err != nil {
		return err
	}
	e.node.AppendChild(el)
	return nil
}

// EditLink returns the entry's rel="edit" link resolved against the
// document base URI, or "" if absent.
func (e *Entry) EditLink() string {
	return Link(e.doc, e.node, e.ver, "edit", "", "")
}

// Permalink returns the entry's rel="alternate" link with type
// text/html or no type attribute, resolved against the document base
// URI, or "" if absent.
func (e *Entry) Permalink() string {
	for _, link := range e.node.Elements(e.ver.NamespaceURI(), "link") {
		if link.Attr("rel") != "alternate" {
			continue
		}
		if typ := link.Attr("type"); typ != "" && typ != "text/html" {
			continue
		}
		if href := link.Attr("href"); href != "" {
			return e.doc.ResolveURL(link, href)
		}
	}
	return ""
}

// GenerateID assigns a urn:uuid id if the entry has none. Calling it
// on an entry that already carries an id is a no-op.
func (e *Entry) GenerateID() {
	if e.node.Element(e.ver.NamespaceURI(), "id") == nil {
		e.populateElement("id", "urn:uuid:"+uuid.NewString())
	}
}

// GenerateUpdated stamps the entry with the current time if it has no
// updated (or modified, per dialect) element.
func (e *Entry) GenerateUpdated() {
	name := e.ver.UpdatedElementName()
	if e.node.Element(e.ver.NamespaceURI(), name) == nil {
		e.populateElement(name, FormatRFC3339(time.Now()))
	}
}

// Link returns the href of the first rel link on el whose type
// matches, resolved against doc's base URI. An empty contentType
// matches links regardless of type; otherwise links without a type
// attribute are skipped, the major type must match exactly, and a
// non-empty contentSubType must additionally match the media type's
// "type" parameter (compared case-insensitively).
func Link(doc *xmldom.Document, el *xmldom.Element, ver ProtocolVersion, rel, contentType, contentSubType string) string {
	for _, link := range el.Elements(ver.NamespaceURI(), "link") {
		if link.Attr("rel") != rel {
			continue
		}
		if contentType != "" {
			mimeType := link.Attr("type")
			if mimeType == "" {
				continue
			}
			mediaType, params, err := mime.ParseMediaType(mimeType)
			if err != nil || mediaType != contentType {
				continue
			}
			if contentSubType != "" && !strings.EqualFold(params["type"], contentSubType) {
				continue
			}
		}
		if href := link.Attr("href"); href != "" {
			return doc.ResolveURL(link, href)
		}
	}
	return ""
}

func (e *Entry) textPlaintext(local string) string {
	el := e.node.Element(e.ver.NamespaceURI(), local)
	if el == nil {
		return ""
	}
	return e.ver.DecodeText(el).Plaintext()
}

func (e *Entry) populateElement(local, value string) {
	e.node.RemoveElements(e.ver.NamespaceURI(), local)
	el := xmldom.NewElement(e.ver.NamespaceURI(), local)
	el.SetText(value)
	e.node.AppendChild(el)
}
