package atom

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postwing/blogclient/internal/blog"
	"github.com/postwing/blogclient/internal/xmldom"
)

const testServiceXML = `<service xmlns="http://www.w3.org/2007/app" xmlns:atom="http://www.w3.org/2005/Atom">
	<workspace>
		<atom:title>My Site</atom:title>
		<collection href="/blog/posts">
			<atom:title>Posts</atom:title>
			<accept>application/atom+xml;type=entry</accept>
			<categories scheme="http://example.com/cats" fixed="no">
				<atom:category term="go"/>
				<atom:category term="xml" label="XML"/>
			</categories>
		</collection>
		<collection href="/blog/media">
			<atom:title>Media</atom:title>
			<accept>image/*</accept>
		</collection>
	</workspace>
</service>`

const testFeedXML = `<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Posts Feed</title>
	<link rel="alternate" type="text/html" href="/home"/>
</feed>`

func discoveryServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	mediaFetches := new(int)
	r := mux.NewRouter()
	r.HandleFunc("/service", func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, testServiceXML)
	})
	r.HandleFunc("/blog/posts", func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, testFeedXML)
	})
	r.HandleFunc("/blog/media", func(w http.ResponseWriter, req *http.Request) {
		*mediaFetches++
		io.WriteString(w, testFeedXML)
	})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, mediaFetches
}

func TestGetUsersBlogsServiceDocument(t *testing.T) {
	ts, mediaFetches := discoveryServer(t)

	c := testClient(t, ts.URL, Config{FeedServiceURL: ts.URL + "/service"})
	blogs, err := c.GetUsersBlogs(context.Background())
	require.NoError(t, err)

	require.Len(t, blogs, 1, "the media collection must not surface as a blog")
	assert.Equal(t, ts.URL+"/blog/posts", blogs[0].ID)
	assert.Equal(t, "My Site - Posts", blogs[0].Name)
	assert.Equal(t, ts.URL+"/home", blogs[0].HomepageURL)
	assert.Equal(t, 0, *mediaFetches)
}

func TestGetUsersBlogsDirectFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, testFeedXML)
	}))
	defer ts.Close()

	c := testClient(t, ts.URL, Config{FeedServiceURL: ts.URL + "/feed"})
	blogs, err := c.GetUsersBlogs(context.Background())
	require.NoError(t, err)

	require.Len(t, blogs, 1)
	assert.Equal(t, ts.URL+"/feed", blogs[0].ID)
	assert.Equal(t, "Posts Feed", blogs[0].Name)
	assert.Equal(t, ts.URL+"/home", blogs[0].HomepageURL)
}

func TestGetUsersBlogsNeitherServiceNorFeed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, `<html><body>login page</body></html>`)
	}))
	defer ts.Close()

	c := testClient(t, ts.URL, Config{FeedServiceURL: ts.URL})
	_, err := c.GetUsersBlogs(context.Background())
	var ise *blog.InvalidServerResponseError
	require.ErrorAs(t, err, &ise)
}

func TestGetUsersBlogsPromote(t *testing.T) {
	service := `<service xmlns="http://www.w3.org/2007/app" xmlns:atom="http://www.w3.org/2005/Atom">
		<workspace>
			<collection href="/a"><atom:title>A</atom:title></collection>
			<collection href="/b"><atom:title>B</atom:title></collection>
		</workspace>
	</service>`
	r := mux.NewRouter()
	r.HandleFunc("/service", func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, service)
	})
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, testFeedXML)
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	c := testClient(t, ts.URL, Config{
		FeedServiceURL: ts.URL + "/service",
		Hooks: Hooks{
			ShouldPromote: func(coll *xmldom.Element) bool {
				return coll.Attr("href") == "/b"
			},
		},
	})
	blogs, err := c.GetUsersBlogs(context.Background())
	require.NoError(t, err)
	require.Len(t, blogs, 2)
	assert.Equal(t, "B", blogs[0].Name)
	assert.Equal(t, "A", blogs[1].Name)
}

func TestAcceptsEntry(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"entry", true},
		{"*/*", true},
		{"application/*", true},
		{"application/atom+xml;type=entry", true},
		{"application/atom+xml; type=ENTRY", true},
		{"application/atom+xml", false},
		{"application/atom+xml;type=feed", false},
		{"image/*", false},
		{"image/png", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := acceptsEntry(tt.accept); got != tt.want {
			t.Errorf("acceptsEntry(%q) = %v, want %v", tt.accept, got, tt.want)
		}
	}
}

func TestCollectionAcceptsEntriesNoAcceptElements(t *testing.T) {
	coll := xmldom.NewElement(V10.PubNamespaceURI(), "collection")
	if !collectionAcceptsEntries(coll, V10.PubNamespaceURI()) {
		t.Error("collection without accept elements must accept entries")
	}
	accept := xmldom.NewElement(V10.PubNamespaceURI(), "accept")
	accept.SetText("image/*")
	coll.AppendChild(accept)
	if collectionAcceptsEntries(coll, V10.PubNamespaceURI()) {
		t.Error("image-only collection accepted entries")
	}
}

func TestGetCategories(t *testing.T) {
	ts, _ := discoveryServer(t)

	scheme := "http://example.com/cats"
	c := testClient(t, ts.URL, Config{
		FeedServiceURL: ts.URL + "/service",
		Options:        blog.Options{SupportsCategories: true, CategoryScheme: &scheme},
	})
	cats, err := c.GetCategories(context.Background(), ts.URL+"/blog/posts")
	require.NoError(t, err)

	require.Len(t, cats, 2)
	// The scheme is inherited from the enclosing categories element.
	assert.Equal(t, blog.Category{Term: "go", Label: "go", Scheme: scheme}, cats[0])
	assert.Equal(t, blog.Category{Term: "xml", Label: "XML", Scheme: scheme}, cats[1])
}

func TestGetCategoriesNilScheme(t *testing.T) {
	ts, _ := discoveryServer(t)

	c := testClient(t, ts.URL, Config{FeedServiceURL: ts.URL + "/service"})
	cats, err := c.GetCategories(context.Background(), ts.URL+"/blog/posts")
	require.NoError(t, err)
	assert.Empty(t, cats, "no configured scheme matches no categories")
}

func TestGetCategoriesOutOfLine(t *testing.T) {
	service := `<service xmlns="http://www.w3.org/2007/app" xmlns:atom="http://www.w3.org/2005/Atom">
		<workspace>
			<collection href="/posts">
				<atom:title>Posts</atom:title>
				<categories href="/cats.xml"/>
			</collection>
		</workspace>
	</service>`
	catsDoc := `<categories xmlns="http://www.w3.org/2007/app" xmlns:atom="http://www.w3.org/2005/Atom" scheme="http://example.com/cats">
		<atom:category term="remote"/>
	</categories>`

	var catsFetches int
	r := mux.NewRouter()
	r.HandleFunc("/service", func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, service)
	})
	r.HandleFunc("/cats.xml", func(w http.ResponseWriter, req *http.Request) {
		catsFetches++
		io.WriteString(w, catsDoc)
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	scheme := "http://example.com/cats"
	c := testClient(t, ts.URL, Config{
		FeedServiceURL: ts.URL + "/service",
		Options:        blog.Options{SupportsCategories: true, CategoryScheme: &scheme},
	})
	cats, err := c.GetCategories(context.Background(), ts.URL+"/posts")
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "remote", cats[0].Term)
	assert.Equal(t, 1, catsFetches)
}

func TestGetCategoriesSelfReferenceStopped(t *testing.T) {
	service := `<service xmlns="http://www.w3.org/2007/app" xmlns:atom="http://www.w3.org/2005/Atom">
		<workspace>
			<collection href="/posts">
				<atom:title>Posts</atom:title>
				<categories href="/cats.xml"/>
			</collection>
		</workspace>
	</service>`
	// The out-of-line document points back at itself.
	selfRef := `<categories xmlns="http://www.w3.org/2007/app" href="/cats.xml"/>`

	var catsFetches int
	r := mux.NewRouter()
	r.HandleFunc("/service", func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, service)
	})
	r.HandleFunc("/cats.xml", func(w http.ResponseWriter, req *http.Request) {
		catsFetches++
		io.WriteString(w, selfRef)
	})
	ts := httptest.NewServer(r)
	defer ts.Close()

	scheme := "http://example.com/cats"
	c := testClient(t, ts.URL, Config{
		FeedServiceURL: ts.URL + "/service",
		Options:        blog.Options{SupportsCategories: true, CategoryScheme: &scheme},
	})
	cats, err := c.GetCategories(context.Background(), ts.URL+"/posts")
	require.NoError(t, err)
	assert.Empty(t, cats)
	assert.Equal(t, 1, catsFetches, "self-referencing href must not refetch")
}

func serviceWithCategories(categories string) string {
	return `<service xmlns="http://www.w3.org/2007/app" xmlns:atom="http://www.w3.org/2005/Atom">
		<workspace>
			<collection href="/posts">
				<atom:title>Posts</atom:title>
				` + categories + `
			</collection>
		</workspace>
	</service>`
}

func TestResolveCategoryScheme(t *testing.T) {
	requested := "http://example.com/cats"
	tests := []struct {
		name            string
		categories      string
		requested       *string
		wantScheme      *string
		wantSupportsNew bool
	}{
		{
			name:            "unscoped open categories",
			categories:      `<categories fixed="no"/>`,
			requested:       nil,
			wantScheme:      blog.SchemeURI(""),
			wantSupportsNew: true,
		},
		{
			name:            "requested scheme declared open",
			categories:      `<categories scheme="http://example.com/cats" fixed="no"/>`,
			requested:       &requested,
			wantScheme:      &requested,
			wantSupportsNew: true,
		},
		{
			name:            "requested scheme declared fixed",
			categories:      `<categories scheme="http://example.com/cats" fixed="yes"/>`,
			requested:       &requested,
			wantScheme:      &requested,
			wantSupportsNew: false,
		},
		{
			name:            "empty scheme declared",
			categories:      `<categories scheme=""/>`,
			requested:       nil,
			wantScheme:      blog.SchemeURI(""),
			wantSupportsNew: true,
		},
		{
			name:            "nothing declared falls back to requested",
			categories:      ``,
			requested:       &requested,
			wantScheme:      &requested,
			wantSupportsNew: false,
		},
		{
			name:            "foreign scheme only",
			categories:      `<categories scheme="http://other.example.com/" fixed="no"/>`,
			requested:       &requested,
			wantScheme:      &requested,
			wantSupportsNew: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				io.WriteString(w, serviceWithCategories(tt.categories))
			}))
			defer ts.Close()

			c := testClient(t, ts.URL, Config{FeedServiceURL: ts.URL + "/service"})
			scheme, supportsNew, err := c.ResolveCategoryScheme(context.Background(), ts.URL+"/posts", tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSupportsNew, supportsNew)
			if tt.wantScheme == nil {
				assert.Nil(t, scheme)
			} else {
				require.NotNil(t, scheme)
				assert.Equal(t, *tt.wantScheme, *scheme)
			}
		})
	}
}

func TestGetCategoriesUnknownCollection(t *testing.T) {
	ts, _ := discoveryServer(t)

	scheme := "http://example.com/cats"
	c := testClient(t, ts.URL, Config{
		FeedServiceURL: ts.URL + "/service",
		Options:        blog.Options{SupportsCategories: true, CategoryScheme: &scheme},
	})
	cats, err := c.GetCategories(context.Background(), ts.URL+"/nonexistent")
	require.NoError(t, err)
	assert.Empty(t, cats)
}
