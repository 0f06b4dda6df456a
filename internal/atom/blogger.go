package atom

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/postwing/blogclient/internal/blog"
	"github.com/postwing/blogclient/internal/xmldom"
	"github.com/postwing/blogclient/internal/xmlrest"
)

const (
	bloggerCategoryScheme = "http://www.blogger.com/atom/ns#"
	bloggerMetafeedURL    = "http://www.blogger.com/feeds/default/blogs"
	bloggerPostRel        = "http://schemas.google.com/g/2005#post"
)

var (
	bloggerWWWPrefix  = regexp.MustCompile(`(?i)^http://www\.blogger\.com/`)
	bloggerWWW2Prefix = regexp.MustCompile(`(?i)^http://www2\.blogger\.com/`)
	orderByPublished  = regexp.MustCompile(`([?&])orderby=published\b(&?)`)
)

// BloggerClient adapts the generic client to Blogger's dialect and its
// server quirks: categories live in the user metafeed rather than the
// service document, recent-posts URLs need orderby=published juggling
// between www and www2, and stale edit URIs are recovered by
// re-fetching the entry.
type BloggerClient struct {
	*Client
	metafeedURL string
}

// NewBloggerClient builds a client preconfigured for Blogger. The
// protocol version, category scheme and capability flags in cfg are
// overridden.
func NewBloggerClient(cfg Config) *BloggerClient {
	cfg.Version = V10DraftBlogger
	cfg.Options.SupportsCategories = true
	cfg.Options.SupportsNewCategories = true
	cfg.Options.SupportsCustomDate = true
	cfg.Options.CategoryScheme = blog.SchemeURI(bloggerCategoryScheme)

	b := &BloggerClient{metafeedURL: bloggerMetafeedURL}
	cfg.Hooks.AlternateRecentPostsURL = alternateBloggerFeedURL
	cfg.Hooks.RecoverEditPost = b.recoverEditPost
	cfg.Hooks.RecoverDeletePost = b.recoverDeletePost
	b.Client = NewClient(cfg)
	return b
}

// GetCategories reads the user's blog metafeed and returns the labels
// of the entry whose post link matches blogID. Blogger does not expose
// categories through the service document.
func (b *BloggerClient) GetCategories(ctx context.Context, blogID string) ([]blog.Category, error) {
	if err := b.login(ctx); err != nil {
		return nil, err
	}

	res, err := b.rest.Get(ctx, b.metafeedURL, b.requestFilter())
	if err != nil {
		return nil, err
	}
	doc := res.Doc
	if doc == nil || doc.Root == nil {
		return nil, &blog.InvalidServerResponseError{
			Method:  "metafeed",
			Message: "empty metafeed returned by Blogger",
		}
	}

	atomNS := b.ver.NamespaceURI()
	for _, entry := range doc.Root.Elements(atomNS, "entry") {
		if !entryHasPostLink(entry, atomNS, blogID) {
			continue
		}
		var categories []blog.Category
		for _, cat := range entry.Elements(atomNS, "category") {
			if cat.Attr("scheme") != bloggerCategoryScheme {
				continue
			}
			term := cat.Attr("term")
			categories = append(categories, blog.Category{Term: term, Label: term, Scheme: bloggerCategoryScheme})
		}
		return categories, nil
	}
	return nil, &blog.InvalidServerResponseError{
		Method:  "metafeed",
		Message: "the expected blog information was not returned by Blogger",
	}
}

// GetRecentPosts asks for posts in published order. Blogger returns
// feeds in last-updated order by default, which reorders the list
// whenever an old post is touched.
func (b *BloggerClient) GetRecentPosts(ctx context.Context, blogID string, maxPosts int, includeCategories bool, before *time.Time) ([]*blog.Post, error) {
	sep := "?"
	if strings.Contains(blogID, "?") {
		sep = "&"
	}
	return b.Client.GetRecentPosts(ctx, blogID+sep+"orderby=published", maxPosts, includeCategories, before)
}

// alternateBloggerFeedURL works around two Blogger feed bugs. New
// Blogger rejects orderby=published on www.blogger.com with a 400 but
// accepts it on www2.blogger.com. Old Blogger rejects it everywhere,
// answering 401 on www2, so there the request is retried on www
// without the parameter.
func alternateBloggerFeedURL(err error, uri string) (string, bool) {
	var se *xmlrest.StatusError
	if !errors.As(err, &se) {
		return "", false
	}
	lower := strings.ToLower(uri)
	hasOrderBy := strings.Contains(lower, "orderby=published")

	if se.StatusCode == http.StatusBadRequest && strings.HasPrefix(lower, "http://www.blogger.com/") && hasOrderBy {
		return bloggerWWWPrefix.ReplaceAllString(uri, "http://www2.blogger.com/"), true
	}
	if se.StatusCode == http.StatusUnauthorized && strings.HasPrefix(lower, "http://www2.blogger.com/") && hasOrderBy {
		alt := bloggerWWW2Prefix.ReplaceAllString(uri, "http://www.blogger.com/")
		// Keep the query string well formed; Blogger 400s on stray
		// separators like "default?&" or a trailing "&".
		alt = orderByPublished.ReplaceAllStringFunc(alt, func(m string) string {
			groups := orderByPublished.FindStringSubmatch(m)
			if groups[2] != "" {
				return groups[1]
			}
			return ""
		})
		if alt != uri {
			return alt, true
		}
	}
	return "", false
}

// recoverDeletePost handles Blogger feeds that hand out edit URIs
// that 400 on DELETE. A GET on the stale URI yields a fresh edit URI
// that does accept DELETE.
func (b *BloggerClient) recoverDeletePost(ctx context.Context, blogID, postID string, cause error) (bool, error) {
	if !isBadRequest(cause) {
		return false, nil
	}
	fresh, err := b.refreshedEditURI(ctx, blogID, postID)
	if err != nil || fresh == "" || fresh == postID {
		return false, nil
	}
	if err := b.deletePost(ctx, blogID, fresh, false); err != nil {
		b.log.WithError(err).Debug("delete retry against refreshed edit URI failed")
		return false, nil
	}
	return true, nil
}

// recoverEditPost is the same workaround for PUT: refetch the entry,
// and if the server reports a different edit URI, retry the edit
// against it. The post keeps its original id either way.
func (b *BloggerClient) recoverEditPost(ctx context.Context, blogID string, post *blog.Post, publish bool, cause error) (*blog.PublishResult, bool, error) {
	if !isBadRequest(cause) {
		return nil, false, nil
	}
	fresh, err := b.refreshedEditURI(ctx, blogID, post.ID)
	if err != nil || fresh == "" || fresh == post.ID {
		return nil, false, nil
	}

	originalID := post.ID
	post.ID = fresh
	defer func() { post.ID = originalID }()

	result, err := b.editPost(ctx, blogID, post, publish, false)
	if err != nil {
		b.log.WithError(err).Debug("edit retry against refreshed edit URI failed")
		return nil, false, nil
	}
	return result, true, nil
}

// refreshedEditURI GETs the entry at postID and returns the edit URI
// the server currently advertises for it.
func (b *BloggerClient) refreshedEditURI(ctx context.Context, blogID, postID string) (string, error) {
	current, err := b.GetPost(ctx, blogID, postID)
	if err != nil {
		return "", err
	}
	doc := current.AtomRemote
	node := b.entryRoot(doc)
	if node == nil {
		return "", nil
	}
	return Link(doc, node, b.ver, "edit", "", ""), nil
}

func entryHasPostLink(entry *xmldom.Element, atomNS, blogID string) bool {
	for _, link := range entry.Elements(atomNS, "link") {
		if link.Attr("rel") == bloggerPostRel && link.Attr("href") == blogID {
			return true
		}
	}
	return false
}

func isBadRequest(err error) bool {
	var se *xmlrest.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusBadRequest
}
