// Package metaweblog implements the subset of the MetaWeblog XML-RPC
// API needed to publish posts, for servers that expose no Atom
// endpoint.
package metaweblog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kolo/xmlrpc"
	"github.com/sirupsen/logrus"

	"github.com/postwing/blogclient/internal/blog"
)

// Client calls a MetaWeblog endpoint. The underlying XML-RPC
// transport has no context support, so each method checks the context
// before issuing its call; an in-flight call cannot be interrupted.
type Client struct {
	rpc   *xmlrpc.Client
	creds blog.Credentials
	log   *logrus.Entry
}

// New connects to the XML-RPC endpoint at endpointURL. transport may
// be nil for http.DefaultTransport.
func New(endpointURL string, creds blog.Credentials, transport http.RoundTripper, log *logrus.Entry) (*Client, error) {
	rpc, err := xmlrpc.NewClient(endpointURL, transport)
	if err != nil {
		return nil, fmt.Errorf("connecting to XML-RPC endpoint %s: %w", endpointURL, err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{rpc: rpc, creds: creds, log: log.WithField("component", "metaweblog")}, nil
}

// Close releases the underlying connections.
func (c *Client) Close() error { return c.rpc.Close() }

// GetUsersBlogs lists the blogs the account can post to.
func (c *Client) GetUsersBlogs(ctx context.Context) ([]blog.BlogInfo, error) {
	var result []map[string]interface{}
	err := c.call(ctx, "blogger.getUsersBlogs", []interface{}{
		"", c.creds.Username(), c.creds.Password(),
	}, &result)
	if err != nil {
		return nil, err
	}
	blogs := make([]blog.BlogInfo, 0, len(result))
	for _, entry := range result {
		blogs = append(blogs, blog.BlogInfo{
			ID:          asString(entry["blogid"]),
			Name:        asString(entry["blogName"]),
			HomepageURL: asString(entry["url"]),
		})
	}
	return blogs, nil
}

// GetCategories lists the categories configured on the blog.
func (c *Client) GetCategories(ctx context.Context, blogID string) ([]blog.Category, error) {
	var result []map[string]interface{}
	err := c.call(ctx, "metaWeblog.getCategories", []interface{}{
		blogID, c.creds.Username(), c.creds.Password(),
	}, &result)
	if err != nil {
		return nil, err
	}
	categories := make([]blog.Category, 0, len(result))
	for _, entry := range result {
		term := asString(entry["categoryId"])
		label := asString(entry["categoryName"])
		if term == "" {
			term = label
		}
		if label == "" {
			label = term
		}
		categories = append(categories, blog.Category{Term: term, Label: label})
	}
	return categories, nil
}

// GetRecentPosts returns up to maxPosts posts, newest first.
func (c *Client) GetRecentPosts(ctx context.Context, blogID string, maxPosts int) ([]*blog.Post, error) {
	var result []map[string]interface{}
	err := c.call(ctx, "metaWeblog.getRecentPosts", []interface{}{
		blogID, c.creds.Username(), c.creds.Password(), maxPosts,
	}, &result)
	if err != nil {
		return nil, err
	}
	posts := make([]*blog.Post, 0, len(result))
	for _, entry := range result {
		posts = append(posts, parsePost(entry))
	}
	return posts, nil
}

// GetPost fetches one post by id.
func (c *Client) GetPost(ctx context.Context, postID string) (*blog.Post, error) {
	var result map[string]interface{}
	err := c.call(ctx, "metaWeblog.getPost", []interface{}{
		postID, c.creds.Username(), c.creds.Password(),
	}, &result)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &blog.InvalidServerResponseError{
			Method:  "metaWeblog.getPost",
			Message: "no post struct returned from server",
		}
	}
	return parsePost(result), nil
}

// NewPost creates a post and returns the server-assigned id.
func (c *Client) NewPost(ctx context.Context, blogID string, post *blog.Post, publish bool) (string, error) {
	var postID string
	err := c.call(ctx, "metaWeblog.newPost", []interface{}{
		blogID, c.creds.Username(), c.creds.Password(), postContent(post), publish,
	}, &postID)
	if err != nil {
		return "", err
	}
	if postID == "" {
		return "", &blog.InvalidServerResponseError{
			Method:  "metaWeblog.newPost",
			Message: "no post id returned from server",
		}
	}
	return postID, nil
}

// EditPost updates an existing post in place.
func (c *Client) EditPost(ctx context.Context, post *blog.Post, publish bool) error {
	var ok bool
	return c.call(ctx, "metaWeblog.editPost", []interface{}{
		post.ID, c.creds.Username(), c.creds.Password(), postContent(post), publish,
	}, &ok)
}

// DeletePost removes a post by id.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	var ok bool
	return c.call(ctx, "blogger.deletePost", []interface{}{
		"", postID, c.creds.Username(), c.creds.Password(), true,
	}, &ok)
}

func (c *Client) call(ctx context.Context, method string, args []interface{}, reply interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.creds.Refresh(ctx); err != nil {
		return err
	}
	c.log.WithField("method", method).Debug("XML-RPC request")
	if err := c.rpc.Call(method, args, reply); err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	return nil
}

// postContent builds the struct parameter shared by newPost and
// editPost.
func postContent(post *blog.Post) map[string]interface{} {
	content := map[string]interface{}{
		"title":       post.Title,
		"description": post.Contents,
	}
	if len(post.Categories) > 0 || len(post.NewCategories) > 0 {
		names := make([]string, 0, len(post.Categories)+len(post.NewCategories))
		for _, cat := range post.Categories {
			names = append(names, cat.Term)
		}
		for _, cat := range post.NewCategories {
			names = append(names, cat.Term)
		}
		content["categories"] = names
	}
	if !post.DatePublishedOverride.IsZero() {
		content["dateCreated"] = post.DatePublishedOverride
	}
	if post.Excerpt != "" {
		content["mt_excerpt"] = post.Excerpt
	}
	if post.Slug != "" {
		content["wp_slug"] = post.Slug
	}
	return content
}

// parsePost maps a MetaWeblog post struct. Servers disagree on value
// types, so scalar fields go through lenient conversion.
func parsePost(entry map[string]interface{}) *blog.Post {
	post := &blog.Post{
		ID:        asString(entry["postid"]),
		Title:     asString(entry["title"]),
		Contents:  asString(entry["description"]),
		Permalink: asString(entry["permaLink"]),
		Excerpt:   asString(entry["mt_excerpt"]),
		Slug:      asString(entry["wp_slug"]),
	}
	if t, ok := entry["dateCreated"].(time.Time); ok {
		post.DatePublished = t
	}
	if cats, ok := entry["categories"].([]interface{}); ok {
		for _, raw := range cats {
			name := asString(raw)
			if name == "" {
				continue
			}
			post.Categories = append(post.Categories, blog.Category{Term: name, Label: name})
		}
	}
	return post
}

func asString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return fmt.Sprintf("%d", val)
	case int:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
