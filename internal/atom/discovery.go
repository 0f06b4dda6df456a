package atom

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/postwing/blogclient/internal/blog"
	"github.com/postwing/blogclient/internal/xmldom"
)

// GetUsersBlogs enumerates the blogs reachable through the feed
// service URL. The URL may point at an Atom Publishing Protocol
// service document, in which case each entry-accepting collection
// becomes a blog, or directly at a feed, which yields a single blog.
func (c *Client) GetUsersBlogs(ctx context.Context) ([]blog.BlogInfo, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	res, err := c.rest.Get(ctx, c.feedServiceURL, c.requestFilter())
	if err != nil {
		return nil, err
	}
	doc := res.Doc
	if doc == nil || doc.Root == nil {
		return nil, &blog.InvalidServerResponseError{
			Method:  "GetUsersBlogs",
			Message: "empty response from feed service URL",
		}
	}

	pubNS := c.ver.PubNamespaceURI()
	if doc.Root.Name.Space != pubNS || doc.Root.Name.Local != "service" {
		// Not a service document; treat it as the blog's feed.
		title, homepageURL, err := c.feedMeta(doc, true)
		if err != nil {
			return nil, err
		}
		return []blog.BlogInfo{{ID: res.URI, Name: title, HomepageURL: homepageURL}}, nil
	}

	var blogs []blog.BlogInfo
	for _, workspace := range doc.Root.Elements(pubNS, "workspace") {
		for _, coll := range workspace.Elements(pubNS, "collection") {
			if !collectionAcceptsEntries(coll, pubNS) {
				continue
			}
			feedURL := doc.ResolveURL(coll, coll.Attr("href"))
			if feedURL == "" {
				continue
			}

			title := c.collectionTitle(workspace, coll)

			feedRes, err := c.rest.Get(ctx, feedURL, c.requestFilter())
			if err != nil {
				return nil, fmt.Errorf("fetching collection feed %s: %w", feedURL, err)
			}
			var homepageURL string
			if feedRes.Doc != nil {
				_, homepageURL, _ = c.feedMeta(feedRes.Doc, false)
			}

			info := blog.BlogInfo{ID: feedURL, Name: title, HomepageURL: homepageURL}
			if c.hooks.ShouldPromote != nil && c.hooks.ShouldPromote(coll) {
				blogs = append([]blog.BlogInfo{info}, blogs...)
			} else {
				blogs = append(blogs, info)
			}
		}
	}
	return blogs, nil
}

// collectionTitle joins the workspace and collection titles, skipping
// empty parts.
func (c *Client) collectionTitle(workspace, coll *xmldom.Element) string {
	var parts []string
	for _, container := range []*xmldom.Element{workspace, coll} {
		titleEl := container.Element(c.ver.NamespaceURI(), "title")
		if titleEl == nil {
			continue
		}
		if part := c.ver.DecodeText(titleEl).Plaintext(); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " - "))
}

// collectionAcceptsEntries reports whether a collection takes Atom
// entries: either it declares no accept rules at all, or at least one
// accept value matches the entry media types.
func collectionAcceptsEntries(coll *xmldom.Element, pubNS string) bool {
	accepts := coll.Elements(pubNS, "accept")
	if len(accepts) == 0 {
		return true
	}
	for _, a := range accepts {
		if acceptsEntry(a.Text()) {
			return true
		}
	}
	return false
}

func acceptsEntry(contentType string) bool {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "entry", "*/*", "application/*":
		return true
	case "application/atom+xml":
		return strings.EqualFold(strings.TrimSpace(params["type"]), "entry")
	default:
		return false
	}
}

// feedMeta extracts the feed title and homepage link from a feed
// document.
func (c *Client) feedMeta(doc *xmldom.Document, includeTitle bool) (title, homepageURL string, err error) {
	atomNS := c.ver.NamespaceURI()
	root := doc.Root
	if root == nil || root.Name.Space != atomNS || root.Name.Local != "feed" {
		return "", "", &blog.InvalidServerResponseError{
			Method:  "GetUsersBlogs",
			Message: "expected an Atom feed document",
			Body:    doc.String(),
		}
	}
	if includeTitle {
		if titleEl := root.Element(atomNS, "title"); titleEl != nil {
			title = c.ver.DecodeText(titleEl).Plaintext()
		}
	}
	for _, link := range root.Elements(atomNS, "link") {
		if link.Attr("rel") != "alternate" {
			continue
		}
		mediaType, _, mimeErr := mime.ParseMediaType(link.Attr("type"))
		if mimeErr != nil {
			continue
		}
		switch mediaType {
		case "text/html", "application/xhtml+xml":
			return title, doc.ResolveURL(link, link.Attr("href")), nil
		}
	}
	return title, "", nil
}

// GetCategories lists the categories of the blog's collection that
// belong to the configured category scheme. A category element without
// its own scheme attribute inherits the scheme of its enclosing
// categories element.
func (c *Client) GetCategories(ctx context.Context, blogID string) ([]blog.Category, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	c.fixupBlogID(&blogID)

	nodes, err := c.categoriesForBlog(ctx, blogID)
	if err != nil {
		return nil, err
	}

	want := c.categoryScheme()
	var categories []blog.Category
	for _, categoriesNode := range nodes {
		inherited := categoriesNode.Attr("scheme")
		for _, categoryNode := range categoriesNode.Elements(c.ver.NamespaceURI(), "category") {
			scheme := categoryNode.Attr("scheme")
			if scheme == "" {
				scheme = inherited
			}
			if want == nil || *want != scheme {
				continue
			}
			term := categoryNode.Attr("term")
			label := categoryNode.Attr("label")
			if label == "" {
				label = term
			}
			categories = append(categories, blog.Category{Term: term, Label: label, Scheme: scheme})
		}
	}
	return categories, nil
}

// ResolveCategoryScheme inspects the blog collection's categories
// declarations and decides which scheme the client should use.
// requested is an externally configured scheme, or nil. The returned
// scheme is nil when no usable scheme was found, in which case
// categories should be treated as unsupported. The precedence order
// of the three rules is load-bearing; servers commonly declare
// several categories elements and the first applicable rule wins.
func (c *Client) ResolveCategoryScheme(ctx context.Context, blogID string, requested *string) (scheme *string, supportsNewCategories bool, err error) {
	if err := c.login(ctx); err != nil {
		return nil, false, err
	}
	c.fixupBlogID(&blogID)

	nodes, err := c.categoriesForBlog(ctx, blogID)
	if err != nil {
		return nil, false, err
	}

	for _, node := range nodes {
		hasScheme := node.HasAttr("scheme")
		schemeVal := node.Attr("scheme")
		isFixed := node.Attr("fixed") == "yes"

		// <categories fixed="no" />
		if !hasScheme && requested == nil && !isFixed {
			return blog.SchemeURI(""), true, nil
		}
		// <categories scheme="requested" fixed="yes|no" />
		if hasScheme && requested != nil && schemeVal == *requested {
			return requested, !isFixed, nil
		}
		// <categories scheme="" fixed="yes|no" />
		if hasScheme && requested == nil && schemeVal == "" {
			return blog.SchemeURI(""), !isFixed, nil
		}
	}
	// No usable scheme declared; fall back to the externally
	// configured one, which may be nil.
	return requested, false, nil
}

// categoriesForBlog resolves the inline categories elements of the
// collection whose href equals blogID, fetching out-of-line
// categories documents as needed.
func (c *Client) categoriesForBlog(ctx context.Context, blogID string) ([]*xmldom.Element, error) {
	res, err := c.rest.Get(ctx, c.feedServiceURL, c.requestFilter())
	if err != nil {
		return nil, err
	}
	doc := res.Doc
	if doc == nil || doc.Root == nil {
		return nil, &blog.InvalidServerResponseError{
			Method:  "GetCategories",
			Message: "empty service document",
		}
	}

	pubNS := c.ver.PubNamespaceURI()
	for _, workspace := range doc.Root.Elements(pubNS, "workspace") {
		for _, coll := range workspace.Elements(pubNS, "collection") {
			if doc.ResolveURL(coll, coll.Attr("href")) != blogID {
				continue
			}
			var out []*xmldom.Element
			for _, categoriesNode := range coll.Elements(pubNS, "categories") {
				if err := c.addCategories(ctx, categoriesNode, doc, res.URI, &out); err != nil {
					return nil, err
				}
			}
			return out, nil
		}
	}
	c.log.WithField("blog_id", blogID).Warn("no matching collection in service document")
	return nil, nil
}

// addCategories collects inline categories elements, following an
// href indirection one document at a time. An href that resolves to
// the URI its own document was fetched from is skipped; that single
// hop is the only cycle protection, deeper href cycles across three
// or more documents are not detected.
func (c *Client) addCategories(ctx context.Context, node *xmldom.Element, doc *xmldom.Document, fetchedFrom string, out *[]*xmldom.Element) error {
	if !node.HasAttr("href") {
		*out = append(*out, node)
		return nil
	}
	href := doc.ResolveURL(node, node.Attr("href"))
	if href == "" || href == fetchedFrom {
		return nil
	}
	res, err := c.rest.Get(ctx, href, c.requestFilter())
	if err != nil {
		return fmt.Errorf("fetching categories document %s: %w", href, err)
	}
	if res.Doc == nil || res.Doc.Root == nil {
		return nil
	}
	root := res.Doc.Root
	if root.Name.Space != c.ver.PubNamespaceURI() || root.Name.Local != "categories" {
		return nil
	}
	return c.addCategories(ctx, root, res.Doc, res.URI, out)
}
