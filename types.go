package stanza

// Post is the core content type. Each post is a Markdown file with YAML
// front matter under the content tree; the file on disk is the source of
// truth and everything else (index, cache, build output) derives from it.
type Post struct {
	Slug    string
	Year    string
	Path    string // source path relative to the content dir
	Title   string
	Summary string
	Date    string // YYYY-MM-DD
	Tags    []string
	Draft   bool
	Math    bool   // include formula rendering assets on the page
	Link    string // site-relative URL, e.g. /posts/rsa/
	Content string // Markdown body below the front matter
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}
