// Package xmlrest is a helper for making REST-ful XML HTTP requests:
// GET/POST/PUT/DELETE with XML request and response bodies, pluggable
// request filters for authorization, and ETag utilities.
package xmlrest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/postwing/blogclient/internal/xmldom"
)

// RequestFilter mutates an outgoing request before it is sent,
// typically to apply authorization headers.
type RequestFilter func(req *http.Request)

// Result is the outcome of one request. Doc is nil when the response
// had no body (for example 204, or a POST the server answered tersely).
type Result struct {
	Doc    *xmldom.Document
	Header http.Header
	// URI is the final request URI after any redirects; response
	// documents are based against it.
	URI string
}

// ETag returns the response ETag with weak validators filtered out.
func (r *Result) ETag() string {
	return FilterWeakETag(r.Header.Get("ETag"))
}

// StatusError is a non-2xx HTTP response, carrying enough context for
// diagnosis without re-querying.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// bodySnippetLen bounds how much response body a StatusError carries.
const bodySnippetLen = 4096

// Client executes XML REST requests. The zero value is not usable;
// construct with New.
type Client struct {
	httpClient *http.Client
	log        *logrus.Entry
}

// New creates a Client around the given http.Client. A nil httpClient
// uses http.DefaultClient; a nil logger discards output.
func New(httpClient *http.Client, log *logrus.Entry) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		log = logrus.NewEntry(logger)
	}
	return &Client{httpClient: httpClient, log: log}
}

// Get retrieves uri and parses the response body as XML.
func (c *Client) Get(ctx context.Context, uri string, filter RequestFilter) (*Result, error) {
	return c.simple(ctx, http.MethodGet, uri, filter)
}

// Delete issues a DELETE with "If-Match: *" and returns the response,
// parsing a body if the server sent one.
func (c *Client) Delete(ctx context.Context, uri string, filter RequestFilter) (*Result, error) {
	return c.simple(ctx, http.MethodDelete, uri, func(req *http.Request) {
		req.Header.Set("If-Match", "*")
		if filter != nil {
			filter(req)
		}
	})
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, uri string, filter RequestFilter) (*Result, error) {
	return c.simple(ctx, http.MethodHead, uri, filter)
}

// Put sends doc as the request body with an optional If-Match ETag.
func (c *Client) Put(ctx context.Context, uri, etag string, filter RequestFilter, contentType string, doc *xmldom.Document) (*Result, error) {
	return c.send(ctx, http.MethodPut, uri, etag, filter, contentType, doc)
}

// Post sends doc as the request body.
func (c *Client) Post(ctx context.Context, uri string, filter RequestFilter, contentType string, doc *xmldom.Document) (*Result, error) {
	return c.send(ctx, http.MethodPost, uri, "", filter, contentType, doc)
}

// PostRaw sends an arbitrary payload (media upload).
func (c *Client) PostRaw(ctx context.Context, uri string, filter RequestFilter, contentType string, body io.Reader) (*Result, error) {
	return c.sendRaw(ctx, http.MethodPost, uri, "", filter, contentType, body)
}

// PutRaw replaces a resource with an arbitrary payload, with an
// optional If-Match ETag.
func (c *Client) PutRaw(ctx context.Context, uri, etag string, filter RequestFilter, contentType string, body io.Reader) (*Result, error) {
	return c.sendRaw(ctx, http.MethodPut, uri, etag, filter, contentType, body)
}

func (c *Client) sendRaw(ctx context.Context, method, uri, etag string, filter RequestFilter, contentType string, body io.Reader) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", uri, err)
	}
	req.Header.Set("Content-Type", contentType)
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}
	if filter != nil {
		filter(req)
	}
	return c.do(req)
}

func (c *Client) simple(ctx context.Context, method, uri string, filter RequestFilter) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", uri, err)
	}
	if filter != nil {
		filter(req)
	}
	return c.do(req)
}

func (c *Client) send(ctx context.Context, method, uri, etag string, filter RequestFilter, contentType string, doc *xmldom.Document) (*Result, error) {
	payload, err := doc.Marshal()
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", uri, err)
	}
	req.Header.Set("Content-Type", contentType)
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}
	if filter != nil {
		filter(req)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Result, error) {
	c.log.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
	}).Debug("XML REST request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", finalURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > bodySnippetLen {
			snippet = snippet[:bodySnippetLen]
		}
		return nil, &StatusError{
			Method:     req.Method,
			URL:        finalURL.String(),
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
	}

	result := &Result{Header: resp.Header, URI: finalURL.String()}
	if len(bytes.TrimSpace(body)) == 0 || req.Method == http.MethodHead {
		return result, nil
	}
	doc, err := xmldom.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing response from %s: %w", finalURL, err)
	}
	doc.BaseURI = finalURL
	result.Doc = doc
	return result, nil
}

// FilterWeakETag treats a weak validator as absent: weak ETags cannot
// be used for exact-match If-Match requests.
func FilterWeakETag(etag string) string {
	if len(etag) >= 2 && strings.EqualFold(etag[:2], "W/") {
		return ""
	}
	return etag
}

// ETag fetches the current ETag for uri, trying HEAD first and falling
// back to GET if the server rejects HEAD with 405 or 501.
func (c *Client) ETag(ctx context.Context, uri string, filter RequestFilter) (string, error) {
	methods := []string{http.MethodHead, http.MethodGet}
	for i, method := range methods {
		res, err := c.simple(ctx, method, uri, filter)
		if err != nil {
			var se *StatusError
			if i < len(methods)-1 && errors.As(err, &se) &&
				(se.StatusCode == http.StatusMethodNotAllowed || se.StatusCode == http.StatusNotImplemented) {
				continue
			}
			return "", err
		}
		return res.ETag(), nil
	}
	return "", nil
}
