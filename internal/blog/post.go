package blog

import (
	"time"

	"github.com/postwing/blogclient/internal/xmldom"
)

// Post represents one blog post or page as exchanged with a provider.
// For Atom providers the ID is the entry's edit URI; for XML-RPC
// providers it is whatever opaque id the server handed back.
type Post struct {
	ID        string
	Title     string
	Excerpt   string
	Contents  string
	Permalink string

	// DatePublished is the server-reported publish time, in UTC.
	DatePublished time.Time

	// DatePublishedOverride, when non-zero, is sent to the server in
	// place of the current time on create/edit.
	DatePublishedOverride time.Time

	Categories    []Category
	NewCategories []Category

	// Slug is the creation hint sent via the Slug header on providers
	// that support it.
	Slug string

	// ETag is the version token from the last GET/PUT of this post.
	ETag string

	// AtomRemote holds the entry document as last seen from the
	// server. Edits are applied against this document so unknown
	// extension elements survive a round trip.
	AtomRemote *xmldom.Document
}

// IsNew reports whether the post has never been published.
func (p *Post) IsNew() bool { return p.ID == "" }

// Category represents one category assignment on a post.
type Category struct {
	// Term is the category identifier as known to the server.
	Term string
	// Label is the display name. Providers that only round-trip one
	// of term/label get the other mirrored onto it.
	Label string
	// Scheme is the URI of the taxonomy the category belongs to, if
	// the provider reported one.
	Scheme string
}

// BlogInfo describes one blog (or media collection) a user can write to.
type BlogInfo struct {
	// ID is the posting endpoint for the blog. For Atom providers
	// this is the collection's feed URL.
	ID          string
	Name        string
	HomepageURL string
}

// PageInfo describes one page on providers that support pages.
type PageInfo struct {
	ID       string
	Title    string
	ParentID string
}

// PublishResult is what a successful create or edit hands back to the
// caller: the canonical id, the fresh ETag, and the authoritative
// server representation to use for the next edit.
type PublishResult struct {
	PostID string
	ETag   string
	Remote *xmldom.Document
}
