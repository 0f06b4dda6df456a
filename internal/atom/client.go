package atom

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/postwing/blogclient/internal/blog"
	"github.com/postwing/blogclient/internal/xmldom"
	"github.com/postwing/blogclient/internal/xmlrest"
)

// EntryContentType is the media type sent with entry bodies on POST
// and PUT.
const EntryContentType = "application/atom+xml;type=entry"

// Hooks are optional provider-specific extension points. Every field
// may be nil; a nil hook means the default behavior.
type Hooks struct {
	// FixupBlogID normalizes a blog id before it is used as a URL.
	FixupBlogID func(blogID string) string

	// AlternateRecentPostsURL inspects a failed feed fetch and may
	// return a replacement URL to retry the same page with. Returning
	// false propagates the original error.
	AlternateRecentPostsURL func(err error, uri string) (string, bool)

	// RecoverEditPost is consulted after an edit fails with cause.
	// Returning true means the hook completed the edit (or failed it)
	// itself.
	RecoverEditPost func(ctx context.Context, blogID string, post *blog.Post, publish bool, cause error) (*blog.PublishResult, bool, error)

	// RecoverDeletePost is consulted after a delete fails with cause.
	// Returning true means the delete should be considered handled.
	RecoverDeletePost func(ctx context.Context, blogID, postID string, cause error) (bool, error)

	// RequestFilter runs after the standard authorization filter on
	// every request.
	RequestFilter xmlrest.RequestFilter

	// ShouldPromote marks a service-document collection whose blog
	// should sort first in GetUsersBlogs results.
	ShouldPromote func(coll *xmldom.Element) bool
}

// Config carries the collaborators a Client needs.
type Config struct {
	// Version selects the protocol dialect. Defaults to V10.
	Version ProtocolVersion

	// FeedServiceURL locates the service document (or, for some
	// providers, the post feed itself).
	FeedServiceURL string

	Credentials blog.Credentials
	Options     blog.Options

	// HTTPClient is the transport for all requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Confirmer decides overwrite conflicts on the 412 retry path.
	// A nil Confirmer declines every overwrite.
	Confirmer blog.Confirmer

	Hooks Hooks

	// OnNewCategory is invoked for each category created as a side
	// effect of publishing, when the provider supports new categories.
	OnNewCategory func(blog.Category)

	Log *logrus.Entry
}

// Client speaks the Atom Publishing Protocol to one blog server. All
// methods are safe for concurrent use; the client holds no mutable
// state and serializes nothing locally, relying on the protocol's
// ETag preconditions to order concurrent writes to the same entry.
type Client struct {
	ver            ProtocolVersion
	feedServiceURL string
	creds          blog.Credentials
	opts           blog.Options
	rest           *xmlrest.Client
	confirm        blog.Confirmer
	hooks          Hooks
	onNewCategory  func(blog.Category)
	log            *logrus.Entry
}

// NewClient builds a Client from cfg, applying defaults for any
// optional collaborator left nil.
func NewClient(cfg Config) *Client {
	ver := cfg.Version
	if ver == nil {
		ver = V10
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "atom")
	return &Client{
		ver:            ver,
		feedServiceURL: cfg.FeedServiceURL,
		creds:          cfg.Credentials,
		opts:           cfg.Options,
		rest:           xmlrest.New(cfg.HTTPClient, log),
		confirm:        cfg.Confirmer,
		hooks:          cfg.Hooks,
		onNewCategory:  cfg.OnNewCategory,
		log:            log,
	}
}

// Options returns the capability flags the client operates under.
func (c *Client) Options() blog.Options { return c.opts }

// Version returns the protocol dialect in use.
func (c *Client) Version() ProtocolVersion { return c.ver }

// GetPost fetches the entry at postID (an edit URI) and returns the
// parsed post together with its ETag and raw remote document.
func (c *Client) GetPost(ctx context.Context, blogID, postID string) (*blog.Post, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	c.fixupBlogID(&blogID)

	res, err := c.rest.Get(ctx, postID, c.requestFilter())
	if err != nil {
		return nil, err
	}
	entryNode := c.entryRoot(res.Doc)
	if entryNode == nil {
		return nil, &blog.InvalidServerResponseError{
			Method:  "GetPost",
			Message: "no post entry returned from server",
			Body:    res.Doc.String(),
		}
	}

	post, err := c.parsePost(res.Doc, entryNode, true)
	if err != nil {
		return nil, err
	}
	post.ID = postID
	post.ETag = res.ETag()
	post.AtomRemote = res.Doc.Clone()
	return post, nil
}

// NewPost creates a new entry in the blog's post collection. The
// returned result carries the new post's id (its edit URI), its ETag,
// and the server's authoritative representation.
func (c *Client) NewPost(ctx context.Context, blogID string, post *blog.Post, publish bool) (*blog.PublishResult, error) {
	if !publish && !c.opts.SupportsPostAsDraft {
		return nil, &blog.MethodUnsupportedError{Method: "PostAsDraft"}
	}
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	c.fixupBlogID(&blogID)

	doc := xmldom.NewDocument(xmldom.NewElement(c.ver.NamespaceURI(), "entry"))
	entry := NewEntry(c.ver, c.categoryScheme(), doc, doc.Root)
	if err := c.populate(post, entry, publish); err != nil {
		return nil, err
	}

	var slug string
	if c.opts.SupportsSlug {
		slug = post.Slug
	}
	filter := c.requestFilter()
	if slug != "" {
		base := filter
		filter = func(req *http.Request) {
			base(req)
			req.Header.Set("Slug", SlugHeaderValue(slug))
		}
	}

	res, err := c.rest.Post(ctx, blogID, filter, EntryContentType, doc)
	if err != nil {
		return nil, err
	}

	etag := res.ETag()
	location := res.Header.Get("Location")
	if location == "" {
		return nil, &blog.InvalidServerResponseError{
			Method:  "POST",
			Message: "the HTTP response was missing the required Location header",
		}
	}
	remote := res.Doc
	if location != res.Header.Get("Content-Location") || remote == nil {
		getRes, err := c.rest.Get(ctx, location, c.requestFilter())
		if err != nil {
			return nil, err
		}
		remote = getRes.Doc
		etag = getRes.ETag()
	}
	if remote == nil {
		return nil, &blog.InvalidServerResponseError{
			Method:  "POST",
			Message: "no entry returned for newly created post",
		}
	}

	c.notifyNewCategories(post)
	return &blog.PublishResult{PostID: location, ETag: etag, Remote: remote.Clone()}, nil
}

// EditPost updates an existing entry via conditional PUT. On a 412 the
// current ETag is fetched and, if the user confirms the overwrite, the
// PUT is retried exactly once; a second 412 propagates. A declined
// overwrite is reported as blog.ErrCancelled.
func (c *Client) EditPost(ctx context.Context, blogID string, post *blog.Post, publish bool) (*blog.PublishResult, error) {
	return c.editPost(ctx, blogID, post, publish, true)
}

// editPost carries the edit flow; allowRecover gates the provider
// recovery hook so a recovery attempt cannot recurse into itself.
func (c *Client) editPost(ctx context.Context, blogID string, post *blog.Post, publish, allowRecover bool) (*blog.PublishResult, error) {
	if !publish && !c.opts.SupportsPostAsDraft {
		return nil, &blog.MethodUnsupportedError{Method: "PostAsDraft"}
	}
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	c.fixupBlogID(&blogID)

	doc := post.AtomRemote
	var entryNode *xmldom.Element
	if doc != nil {
		entryNode = c.entryRoot(doc)
	}
	if entryNode == nil {
		return nil, &blog.InvalidServerResponseError{
			Method:  "EditPost",
			Message: "no remote entry available for edit",
		}
	}
	entry := NewEntry(c.ver, c.categoryScheme(), doc, entryNode)
	if err := c.populate(post, entry, publish); err != nil {
		return nil, err
	}

	err := c.putEntry(ctx, post.ID, xmlrest.FilterWeakETag(post.ETag), doc)
	if err != nil {
		if errors.Is(err, blog.ErrCancelled) {
			return nil, err
		}
		if allowRecover && c.hooks.RecoverEditPost != nil {
			if result, handled, hookErr := c.hooks.RecoverEditPost(ctx, blogID, post, publish, err); handled {
				return result, hookErr
			}
		}
		var se *xmlrest.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, &blog.ProviderError{Code: "404", Message: err.Error()}
		}
		return nil, err
	}

	res, err := c.rest.Get(ctx, post.ID, c.requestFilter())
	if err != nil {
		return nil, fmt.Errorf("fetching post after successful edit: %w", err)
	}

	c.notifyNewCategories(post)
	return &blog.PublishResult{PostID: post.ID, ETag: res.ETag(), Remote: res.Doc}, nil
}

// putEntry performs the conditional PUT with the bounded 412 retry.
func (c *Client) putEntry(ctx context.Context, uri, etag string, doc *xmldom.Document) error {
	_, err := c.rest.Put(ctx, uri, etag, c.requestFilter(), EntryContentType, doc)
	if err == nil {
		return nil
	}
	var se *xmlrest.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusPreconditionFailed || etag == "" {
		return err
	}
	c.log.WithError(err).Debug("conditional PUT failed, fetching current etag")

	current, etagErr := c.rest.ETag(ctx, uri, c.requestFilter())
	if etagErr != nil || current == "" || current == etag {
		return err
	}
	if c.confirm == nil || !c.confirm.ConfirmOverwrite() {
		return blog.ErrCancelled
	}
	_, err = c.rest.Put(ctx, uri, current, c.requestFilter(), EntryContentType, doc)
	return err
}

// DeletePost deletes the entry at postID. HTTP 404 and 410 are
// acceptable responses: the post is gone either way.
func (c *Client) DeletePost(ctx context.Context, blogID, postID string) error {
	return c.deletePost(ctx, blogID, postID, true)
}

func (c *Client) deletePost(ctx context.Context, blogID, postID string, allowRecover bool) error {
	if err := c.login(ctx); err != nil {
		return err
	}
	c.fixupBlogID(&blogID)

	_, err := c.rest.Delete(ctx, postID, c.requestFilter())
	if err == nil {
		return nil
	}
	var se *xmlrest.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return nil
		}
	}
	if allowRecover && c.hooks.RecoverDeletePost != nil {
		if handled, hookErr := c.hooks.RecoverDeletePost(ctx, blogID, postID, err); handled {
			return hookErr
		}
	}
	return err
}

// ETag fetches the current ETag of uri, trying HEAD before GET.
func (c *Client) ETag(ctx context.Context, uri string) (string, error) {
	return c.rest.ETag(ctx, uri, c.requestFilter())
}

// Page operations are not part of the Atom protocol surface.

func (c *Client) GetPage(ctx context.Context, blogID, pageID string) (*blog.Post, error) {
	return nil, &blog.MethodUnsupportedError{Method: "GetPage"}
}

func (c *Client) GetPageList(ctx context.Context, blogID string) ([]blog.PageInfo, error) {
	return nil, &blog.MethodUnsupportedError{Method: "GetPageList"}
}

func (c *Client) NewPage(ctx context.Context, blogID string, page *blog.Post, publish bool) (*blog.PublishResult, error) {
	return nil, &blog.MethodUnsupportedError{Method: "NewPage"}
}

func (c *Client) EditPage(ctx context.Context, blogID string, page *blog.Post, publish bool) (*blog.PublishResult, error) {
	return nil, &blog.MethodUnsupportedError{Method: "EditPage"}
}

func (c *Client) DeletePage(ctx context.Context, blogID, pageID string) error {
	return &blog.MethodUnsupportedError{Method: "DeletePage"}
}

// parsePost maps an entry element to a Post. The returned post has no
// ETag or remote document; callers that have them fill them in.
func (c *Client) parsePost(doc *xmldom.Document, node *xmldom.Element, includeCategories bool) (*blog.Post, error) {
	entry := NewEntry(c.ver, c.categoryScheme(), doc, node)

	published, err := entry.PublishDate()
	if err != nil {
		return nil, &blog.InvalidServerResponseError{
			Method:  "ParseEntry",
			Message: err.Error(),
			Body:    node.String(),
		}
	}

	post := &blog.Post{
		ID:            entry.EditLink(),
		Title:         entry.Title(),
		Excerpt:       entry.Excerpt(),
		Contents:      entry.ContentHTML(),
		Permalink:     entry.Permalink(),
		DatePublished: published,
	}
	if c.opts.SupportsCategories && includeCategories {
		post.Categories = entry.Categories()
	}
	return post, nil
}

// populate writes a Post's fields into the entry, replacing whatever
// the entry held for each populated field.
func (c *Client) populate(post *blog.Post, entry *Entry, publish bool) error {
	if post.IsNew() {
		entry.GenerateID()
	}
	entry.SetTitle(post.Title)
	if c.opts.SupportsExcerpt && post.Excerpt != "" {
		entry.SetExcerpt(post.Excerpt)
	}
	entry.SetContentHTML(post.Contents)
	if c.opts.SupportsCustomDate && !post.DatePublishedOverride.IsZero() {
		entry.SetPublishDate(post.DatePublishedOverride)
	}

	if c.opts.SupportsCategories {
		entry.ClearCategories()
		for _, cat := range post.Categories {
			if err := entry.AddCategory(cat); err != nil {
				return err
			}
		}
		if c.opts.SupportsNewCategories {
			for _, cat := range post.NewCategories {
				if err := entry.AddCategory(cat); err != nil {
					return err
				}
			}
		}
	}

	if c.opts.SupportsPostAsDraft {
		c.setDraft(entry.Node(), !publish)
	}
	return nil
}

// setDraft maintains the app:control/app:draft element. Existing draft
// elements are always removed first; draft entries get a fresh
// draft=yes under a control element created on demand.
func (c *Client) setDraft(node *xmldom.Element, draft bool) {
	pubNS := c.ver.PubNamespaceURI()
	for _, control := range node.Elements(pubNS, "control") {
		control.RemoveElements(pubNS, "draft")
	}
	if !draft {
		return
	}
	control := node.Element(pubNS, "control")
	if control == nil {
		control = xmldom.NewElement(pubNS, "control")
		node.AppendChild(control)
	}
	draftEl := xmldom.NewElement(pubNS, "draft")
	draftEl.SetText("yes")
	control.AppendChild(draftEl)
}

// entryRoot returns doc's root element if it is an Atom entry.
func (c *Client) entryRoot(doc *xmldom.Document) *xmldom.Element {
	if doc == nil || doc.Root == nil {
		return nil
	}
	root := doc.Root
	if root.Name.Space == c.ver.NamespaceURI() && root.Name.Local == "entry" {
		return root
	}
	return nil
}

// login refreshes credentials, which may block on user interaction.
func (c *Client) login(ctx context.Context) error {
	if c.creds == nil {
		return nil
	}
	return c.creds.Refresh(ctx)
}

func (c *Client) fixupBlogID(blogID *string) {
	if c.hooks.FixupBlogID != nil {
		*blogID = c.hooks.FixupBlogID(*blogID)
	}
}

func (c *Client) categoryScheme() *string {
	return c.opts.CategoryScheme
}

// requestFilter builds the per-request mutation chain: basic auth from
// the credentials provider, then any provider hook.
func (c *Client) requestFilter() xmlrest.RequestFilter {
	return func(req *http.Request) {
		if c.creds != nil {
			req.SetBasicAuth(c.creds.Username(), c.creds.Password())
		}
		if c.hooks.RequestFilter != nil {
			c.hooks.RequestFilter(req)
		}
	}
}

func (c *Client) notifyNewCategories(post *blog.Post) {
	if !c.opts.SupportsNewCategories || c.onNewCategory == nil {
		return
	}
	for _, cat := range post.NewCategories {
		c.onNewCategory(cat)
	}
}
