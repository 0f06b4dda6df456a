package blog

// Options captures what a provider supports. The zero value is the most
// conservative profile; provider constructors fill in what they know.
type Options struct {
	SupportsCategories    bool
	SupportsNewCategories bool
	SupportsExcerpt       bool
	SupportsCustomDate    bool
	SupportsSlug          bool
	SupportsPostAsDraft   bool
	SupportsPages         bool

	// CategoryScheme is the scheme URI used to read and write
	// categories. nil means no scheme is in effect, which is distinct
	// from the empty scheme.
	CategoryScheme *string
}

// SchemeURI is a convenience for building an Options.CategoryScheme
// value in place.
func SchemeURI(uri string) *string { return &uri }
