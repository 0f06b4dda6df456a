package atom

import (
	"context"
	"time"

	"github.com/postwing/blogclient/internal/blog"
	"github.com/postwing/blogclient/internal/xmlrest"
)

// GetRecentPosts walks the blog's post feed following rel="next"
// links until maxPosts entries are collected or the feed runs out.
// When before is non-nil, only entries published strictly before that
// instant are included. A duplicate entry id anywhere in the walk
// truncates the result set to what was collected so far; some servers
// repeat entries across a pagination race and the partial list is
// still useful.
func (c *Client) GetRecentPosts(ctx context.Context, blogID string, maxPosts int, includeCategories bool, before *time.Time) ([]*blog.Post, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	c.fixupBlogID(&blogID)

	seen := make(map[string]bool)
	var posts []*blog.Post

	pageURL := blogID
	for {
		res, err := c.fetchFeedPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		doc := res.Doc
		if doc == nil || doc.Root == nil {
			break
		}
		atomNS := c.ver.NamespaceURI()
		entries := doc.Root.Elements(atomNS, "entry")
		if len(entries) == 0 {
			break
		}

		for _, node := range entries {
			post, err := c.parsePost(doc, node, includeCategories)
			if err != nil {
				return nil, err
			}
			if seen[post.ID] {
				c.log.WithField("post_id", post.ID).Warn("duplicate entry id in feed, truncating results")
				return posts, nil
			}
			seen[post.ID] = true

			if before == nil || post.DatePublished.Before(*before) {
				posts = append(posts, post)
			}
			if len(posts) >= maxPosts {
				return posts, nil
			}
		}

		next := Link(doc, doc.Root, c.ver, "next", "", "")
		if next == "" {
			break
		}
		pageURL = next
	}
	return posts, nil
}

// fetchFeedPage GETs one feed page, giving the provider hook a chance
// to rewrite the URL and retry when a request fails.
func (c *Client) fetchFeedPage(ctx context.Context, pageURL string) (*xmlrest.Result, error) {
	for {
		res, err := c.rest.Get(ctx, pageURL, c.requestFilter())
		if err == nil {
			return res, nil
		}
		if c.hooks.AlternateRecentPostsURL != nil {
			if alt, ok := c.hooks.AlternateRecentPostsURL(err, pageURL); ok {
				c.log.WithError(err).WithField("url", alt).Debug("retrying feed page with alternate URL")
				pageURL = alt
				continue
			}
		}
		return nil, err
	}
}
