package atom

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/postwing/blogclient/internal/blog"
	"github.com/postwing/blogclient/internal/xmldom"
	"github.com/postwing/blogclient/internal/xmlrest"
)

// MediaUpload describes one file destined for a media collection.
// EditMediaURI, EditEntryURI and ETag come from a previous upload of
// the same file and select replace-in-place instead of create.
type MediaUpload struct {
	Name        string
	ContentType string
	Content     []byte

	EditMediaURI string
	EditEntryURI string
	ETag         string
}

// MediaResult carries the links a caller needs to reference and later
// replace an uploaded file.
type MediaResult struct {
	SourceURL    string
	EditMediaURI string
	EditEntryURI string
	ETag         string
}

// UploadMedia stores a file in the collection at collectionURI. A new
// file is POSTed; a file uploaded before is replaced with a
// conditional PUT against its edit-media link, falling back to a
// fresh POST if the replace fails outright.
func (c *Client) UploadMedia(ctx context.Context, collectionURI string, up MediaUpload) (*MediaResult, error) {
	if err := c.login(ctx); err != nil {
		return nil, err
	}

	if up.EditMediaURI == "" {
		if collectionURI == "" {
			return nil, &blog.MethodUnsupportedError{Method: "UploadMedia"}
		}
		return c.postNewMedia(ctx, collectionURI, up)
	}

	result, err := c.replaceMedia(ctx, up)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, blog.ErrCancelled) || collectionURI == "" {
		return nil, err
	}
	c.log.WithError(err).Warn("media replace failed, posting as new")
	result, postErr := c.postNewMedia(ctx, collectionURI, up)
	if postErr != nil {
		// The replace failure is the interesting one.
		return nil, err
	}
	return result, nil
}

func (c *Client) postNewMedia(ctx context.Context, collectionURI string, up MediaUpload) (*MediaResult, error) {
	res, err := c.rest.PostRaw(ctx, collectionURI, c.mediaFilter(up), up.ContentType, bytes.NewReader(up.Content))
	if err != nil {
		return nil, err
	}

	etag := res.ETag()
	location := res.Header.Get("Location")
	doc := res.Doc
	if location == "" || location != res.Header.Get("Content-Location") || doc == nil {
		uri := res.URI
		if location != "" {
			uri = location
		}
		getRes, err := c.rest.Get(ctx, uri, c.requestFilter())
		if err != nil {
			return nil, err
		}
		doc = getRes.Doc
		etag = getRes.ETag()
	}
	return c.parseMediaEntry(doc, etag)
}

// replaceMedia PUTs the new bytes over the existing media resource,
// with the same bounded 412 confirm-and-retry dance used for entry
// edits, then re-reads the media link entry for the fresh links.
func (c *Client) replaceMedia(ctx context.Context, up MediaUpload) (*MediaResult, error) {
	etag := xmlrest.FilterWeakETag(up.ETag)
	_, err := c.rest.PutRaw(ctx, up.EditMediaURI, etag, c.mediaFilter(up), up.ContentType, bytes.NewReader(up.Content))
	if err != nil {
		var se *xmlrest.StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusPreconditionFailed || etag == "" {
			return nil, err
		}
		current, etagErr := c.rest.ETag(ctx, up.EditMediaURI, c.requestFilter())
		if etagErr != nil || current == "" || current == etag {
			return nil, err
		}
		if c.confirm == nil || !c.confirm.ConfirmOverwrite() {
			return nil, blog.ErrCancelled
		}
		if _, err = c.rest.PutRaw(ctx, up.EditMediaURI, current, c.mediaFilter(up), up.ContentType, bytes.NewReader(up.Content)); err != nil {
			return nil, err
		}
	}

	if up.EditEntryURI == "" {
		return &MediaResult{EditMediaURI: up.EditMediaURI}, nil
	}
	res, err := c.rest.Get(ctx, up.EditEntryURI, c.requestFilter())
	if err != nil {
		return nil, err
	}
	return c.parseMediaEntry(res.Doc, res.ETag())
}

// parseMediaEntry extracts the content src and edit links from a
// media link entry.
func (c *Client) parseMediaEntry(doc *xmldom.Document, etag string) (*MediaResult, error) {
	entryNode := c.entryRoot(doc)
	if entryNode == nil {
		return nil, &blog.InvalidServerResponseError{
			Method:  "UploadMedia",
			Message: "no media link entry returned from server",
		}
	}
	result := &MediaResult{
		EditMediaURI: Link(doc, entryNode, c.ver, "edit-media", "", ""),
		EditEntryURI: Link(doc, entryNode, c.ver, "edit", "", ""),
		ETag:         etag,
	}
	if contentEl := entryNode.Element(c.ver.NamespaceURI(), "content"); contentEl != nil {
		if src := contentEl.Attr("src"); src != "" {
			result.SourceURL = doc.ResolveURL(contentEl, src)
		}
	}
	return result, nil
}

// mediaFilter adds the Slug header carrying the file name on top of
// the standard request filter.
func (c *Client) mediaFilter(up MediaUpload) xmlrest.RequestFilter {
	base := c.requestFilter()
	return func(req *http.Request) {
		base(req)
		if c.opts.SupportsSlug && up.Name != "" {
			req.Header.Set("Slug", SlugHeaderValue(up.Name))
		}
	}
}
