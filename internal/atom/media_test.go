package atom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postwing/blogclient/internal/blog"
)

func mediaEntry(src, editMedia, edit string) string {
	return fmt.Sprintf(`<entry xmlns="http://www.w3.org/2005/Atom">
		<id>urn:uuid:99999999-8888-7777-6666-555555555555</id>
		<title>cat.png</title>
		<link rel="edit-media" href="%s"/>
		<link rel="edit" href="%s"/>
		<content type="image/png" src="%s"/>
	</entry>`, editMedia, edit, src)
}

func TestUploadMediaNew(t *testing.T) {
	var slug, contentType string
	var body []byte
	var ts *httptest.Server
	r := mux.NewRouter()
	r.HandleFunc("/media", func(w http.ResponseWriter, req *http.Request) {
		slug = req.Header.Get("Slug")
		contentType = req.Header.Get("Content-Type")
		body, _ = io.ReadAll(req.Body)
		w.Header().Set("Location", ts.URL+"/media/1")
		w.Header().Set("Content-Location", ts.URL+"/media/1")
		w.Header().Set("ETag", `"m1"`)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, mediaEntry("/files/cat.png", "/media/1.bits", "/media/1"))
	}).Methods("POST")
	ts = httptest.NewServer(r)
	defer ts.Close()

	c := testClient(t, ts.URL, Config{
		Options: blog.Options{SupportsSlug: true},
	})
	res, err := c.UploadMedia(context.Background(), ts.URL+"/media", MediaUpload{
		Name:        "cat.png",
		ContentType: "image/png",
		Content:     []byte("PNGDATA"),
	})
	require.NoError(t, err)

	assert.Equal(t, "cat.png", slug)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "PNGDATA", string(body))
	assert.Equal(t, ts.URL+"/files/cat.png", res.SourceURL)
	assert.Equal(t, ts.URL+"/media/1.bits", res.EditMediaURI)
	assert.Equal(t, ts.URL+"/media/1", res.EditEntryURI)
	assert.Equal(t, `"m1"`, res.ETag)
}

func TestUploadMediaNewFollowUpGet(t *testing.T) {
	var ts *httptest.Server
	r := mux.NewRouter()
	r.HandleFunc("/media", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Location", ts.URL+"/media/1")
		w.WriteHeader(http.StatusCreated)
	}).Methods("POST")
	r.HandleFunc("/media/1", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("ETag", `"m2"`)
		io.WriteString(w, mediaEntry("/files/cat.png", "/media/1.bits", "/media/1"))
	}).Methods("GET")
	ts = httptest.NewServer(r)
	defer ts.Close()

	c := testClient(t, ts.URL, Config{})
	res, err := c.UploadMedia(context.Background(), ts.URL+"/media", MediaUpload{
		Name:        "cat.png",
		ContentType: "image/png",
		Content:     []byte("PNGDATA"),
	})
	require.NoError(t, err)
	assert.Equal(t, `"m2"`, res.ETag)
	assert.Equal(t, ts.URL+"/files/cat.png", res.SourceURL)
}

func TestUploadMediaNoCollection(t *testing.T) {
	c := testClient(t, "http://unused.invalid", Config{})
	_, err := c.UploadMedia(context.Background(), "", MediaUpload{Name: "cat.png"})
	var mue *blog.MethodUnsupportedError
	require.ErrorAs(t, err, &mue)
	assert.Equal(t, "UploadMedia", mue.Method)
}

func TestUploadMediaReplace(t *testing.T) {
	var putIfMatch string
	r := mux.NewRouter()
	r.HandleFunc("/media/1.bits", func(w http.ResponseWriter, req *http.Request) {
		putIfMatch = req.Header.Get("If-Match")
		w.WriteHeader(http.StatusOK)
	}).Methods("PUT")
	r.HandleFunc("/media/1", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("ETag", `"m3"`)
		io.WriteString(w, mediaEntry("/files/cat2.png", "/media/1.bits", "/media/1"))
	}).Methods("GET")
	ts := httptest.NewServer(r)
	defer ts.Close()

	c := testClient(t, ts.URL, Config{})
	res, err := c.UploadMedia(context.Background(), ts.URL+"/media", MediaUpload{
		Name:         "cat.png",
		ContentType:  "image/png",
		Content:      []byte("PNGDATA2"),
		EditMediaURI: ts.URL + "/media/1.bits",
		EditEntryURI: ts.URL + "/media/1",
		ETag:         `"m2"`,
	})
	require.NoError(t, err)
	assert.Equal(t, `"m2"`, putIfMatch)
	assert.Equal(t, ts.URL+"/files/cat2.png", res.SourceURL)
	assert.Equal(t, `"m3"`, res.ETag)
}

func TestUploadMediaReplaceFallsBackToPost(t *testing.T) {
	var posts int
	var ts *httptest.Server
	r := mux.NewRouter()
	r.HandleFunc("/media/1.bits", func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "gone away", http.StatusInternalServerError)
	}).Methods("PUT")
	r.HandleFunc("/media", func(w http.ResponseWriter, req *http.Request) {
		posts++
		w.Header().Set("Location", ts.URL+"/media/2")
		w.Header().Set("Content-Location", ts.URL+"/media/2")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, mediaEntry("/files/cat.png", "/media/2.bits", "/media/2"))
	}).Methods("POST")
	ts = httptest.NewServer(r)
	defer ts.Close()

	c := testClient(t, ts.URL, Config{})
	res, err := c.UploadMedia(context.Background(), ts.URL+"/media", MediaUpload{
		Name:         "cat.png",
		ContentType:  "image/png",
		Content:      []byte("PNGDATA"),
		EditMediaURI: ts.URL + "/media/1.bits",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, posts)
	assert.Equal(t, ts.URL+"/media/2.bits", res.EditMediaURI)
}

func TestUploadMediaReplaceConflictDeclined(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/media/1.bits", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPut {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.Header().Set("ETag", `"m9"`)
	}).Methods("PUT", "HEAD", "GET")
	ts := httptest.NewServer(r)
	defer ts.Close()

	c := testClient(t, ts.URL, Config{
		Confirmer: blog.ConfirmerFunc(func() bool { return false }),
	})
	_, err := c.UploadMedia(context.Background(), ts.URL+"/media", MediaUpload{
		Name:         "cat.png",
		ContentType:  "image/png",
		Content:      []byte("PNGDATA"),
		EditMediaURI: ts.URL + "/media/1.bits",
		ETag:         `"m2"`,
	})
	require.True(t, blog.IsCancelled(err), "declined overwrite must cancel, not fall back to POST: %v", err)
}
