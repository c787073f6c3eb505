package stanza

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/a-h/templ"
	"github.com/tdewolff/minify/v2"
	mhtml "github.com/tdewolff/minify/v2/html"
	mxml "github.com/tdewolff/minify/v2/xml"
)

// Builder compiles the content tree into the static site. Every build
// regenerates the full output tree; given an unchanged content tree the
// output is byte-for-byte identical, since no timestamps are embedded and
// all listings are sorted deterministically.
type Builder struct {
	cfg   SiteConfig
	views ViewFuncs
	min   *minify.M
}

// BuildResult summarizes a completed build.
type BuildResult struct {
	Posts  int // published post pages written
	Drafts int // draft posts excluded from output
	Pages  int // total files written (pages, feeds, copied assets)
}

// NewBuilder creates a Builder for the given site config and views.
func NewBuilder(cfg SiteConfig, views ViewFuncs) *Builder {
	cfg.setDefaults()
	b := &Builder{cfg: cfg, views: views}
	if cfg.Minify {
		m := minify.New()
		m.AddFunc("text/html", mhtml.Minify)
		m.AddFunc("text/xml", mxml.Minify)
		b.min = m
	}
	return b
}

// Build loads the content tree and writes the complete site into the
// output directory, replacing whatever was there.
func (b *Builder) Build(ctx context.Context) (BuildResult, error) {
	var res BuildResult

	posts, err := LoadTree(b.cfg.ContentDir)
	if err != nil {
		return res, err
	}
	published := PublishedOnly(posts)
	res.Drafts = len(posts) - len(published)
	tags := CollectTags(published)

	out := b.cfg.OutputDir
	if err := os.RemoveAll(out); err != nil {
		return res, fmt.Errorf("clean output dir: %w", err)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return res, err
	}

	// Home index
	if err := b.writeComponent(ctx, filepath.Join(out, "index.html"),
		b.views.Home(published, "", tags)); err != nil {
		return res, err
	}
	res.Pages++

	// One page per published post
	for _, p := range published {
		related := FilterRelatedPosts(p, published)
		path := filepath.Join(out, "posts", p.Slug, "index.html")
		if err := b.writeComponent(ctx, path, b.views.Post(p, related)); err != nil {
			return res, fmt.Errorf("render %s: %w", p.Slug, err)
		}
		res.Posts++
		res.Pages++
	}

	// Per-tag listings
	for _, tag := range tags {
		path := filepath.Join(out, "tags", Slugify(tag), "index.html")
		if err := b.writeComponent(ctx, path, b.views.Tag(tag, FilterByTag(published, tag))); err != nil {
			return res, fmt.Errorf("render tag %s: %w", tag, err)
		}
		res.Pages++
	}

	// Feed, sitemap, robots
	if err := b.writeXML(filepath.Join(out, "feed.xml"), func(w io.Writer) error {
		return WriteFeed(w, b.cfg, published)
	}); err != nil {
		return res, err
	}
	res.Pages++
	if err := b.writeXML(filepath.Join(out, "sitemap.xml"), func(w io.Writer) error {
		return WriteSitemap(w, b.cfg, published)
	}); err != nil {
		return res, err
	}
	res.Pages++
	robots := "User-agent: *\nAllow: /\nSitemap: " + b.cfg.URL + "/sitemap.xml\n"
	if err := os.WriteFile(filepath.Join(out, "robots.txt"), []byte(robots), 0o644); err != nil {
		return res, err
	}
	res.Pages++

	// Static assets
	copied, err := copyDir(b.cfg.StaticDir, filepath.Join(out, "public"))
	if err != nil {
		return res, err
	}
	res.Pages += copied

	return res, nil
}

func (b *Builder) writeComponent(ctx context.Context, path string, cmp templ.Component) error {
	var buf bytes.Buffer
	if err := cmp.Render(ctx, &buf); err != nil {
		return err
	}
	data := buf.Bytes()
	if b.min != nil {
		minified, err := b.min.Bytes("text/html", data)
		if err != nil {
			return fmt.Errorf("minify %s: %w", path, err)
		}
		data = minified
	}
	return writeFile(path, data)
}

func (b *Builder) writeXML(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	data := buf.Bytes()
	if b.min != nil {
		minified, err := b.min.Bytes("text/xml", data)
		if err != nil {
			return fmt.Errorf("minify %s: %w", path, err)
		}
		data = minified
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// copyDir copies src into dst recursively. A missing src is not an error:
// a site without static assets is fine.
func copyDir(src, dst string) (int, error) {
	info, err := os.Stat(src)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("static dir %s is not a directory", src)
	}
	copied := 0
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := writeFile(target, data); err != nil {
			return err
		}
		copied++
		return nil
	})
	return copied, err
}
