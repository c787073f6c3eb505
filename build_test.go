package stanza_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merenth/stanza"
	"github.com/merenth/stanza/views"
)

func buildSite(t *testing.T, minify bool) (stanza.SiteConfig, stanza.BuildResult) {
	t.Helper()
	root := t.TempDir()
	content := filepath.Join(root, "content")
	static := filepath.Join(root, "public")

	writeFile(t, filepath.Join(content, "2023", "rsa.md"), `---
title: "RSA"
summary: "RSA explained"
date: 2023-04-02
tags: [crypto, math]
---

# RSA

Body with a [link](/posts/go-slices/).
`)
	writeFile(t, filepath.Join(content, "2023", "go-slices.md"), `---
title: "Go slices"
summary: "Slice internals"
date: 2023-06-10
tags: [go]
---

Body.
`)
	writeFile(t, filepath.Join(content, "2024", "wip.md"), `---
title: "WIP"
summary: "not ready"
date: 2024-01-05
tags: [go]
draft: true
---

Draft body.
`)
	writeFile(t, filepath.Join(static, "style.css"), "body { margin: 0 }\n")

	cfg := stanza.SiteConfig{
		Name:       "Test Blog",
		URL:        "https://example.com",
		ContentDir: content,
		StaticDir:  static,
		OutputDir:  filepath.Join(root, "dist"),
		Minify:     minify,
	}

	builder := stanza.NewBuilder(cfg, views.New(cfg))
	res, err := builder.Build(context.Background())
	require.NoError(t, err)
	return cfg, res
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBuildWritesFullSite(t *testing.T) {
	cfg, res := buildSite(t, false)
	out := cfg.OutputDir

	assert.Equal(t, 2, res.Posts)
	assert.Equal(t, 1, res.Drafts)

	for _, rel := range []string{
		"index.html",
		"posts/rsa/index.html",
		"posts/go-slices/index.html",
		"tags/crypto/index.html",
		"tags/math/index.html",
		"tags/go/index.html",
		"feed.xml",
		"sitemap.xml",
		"robots.txt",
		"public/style.css",
	} {
		_, err := os.Stat(filepath.Join(out, rel))
		assert.NoError(t, err, rel)
	}
}

func TestBuildExcludesDrafts(t *testing.T) {
	cfg, _ := buildSite(t, false)
	out := cfg.OutputDir

	_, err := os.Stat(filepath.Join(out, "posts", "wip", "index.html"))
	assert.True(t, os.IsNotExist(err), "draft post must not be written")

	home := readFile(t, filepath.Join(out, "index.html"))
	assert.NotContains(t, home, "WIP")

	feed := readFile(t, filepath.Join(out, "feed.xml"))
	assert.NotContains(t, feed, "WIP")

	sitemap := readFile(t, filepath.Join(out, "sitemap.xml"))
	assert.NotContains(t, sitemap, "/posts/wip/")
}

func TestBuildPostPage(t *testing.T) {
	cfg, _ := buildSite(t, false)

	page := readFile(t, filepath.Join(cfg.OutputDir, "posts", "rsa", "index.html"))
	assert.Contains(t, page, "<h1>RSA</h1>")
	assert.Contains(t, page, `"@type":"BlogPosting"`)
	assert.Contains(t, page, "/public/style.css")
}

func TestBuildFeedAndSitemap(t *testing.T) {
	cfg, _ := buildSite(t, false)
	out := cfg.OutputDir

	feed := readFile(t, filepath.Join(out, "feed.xml"))
	assert.Contains(t, feed, "<rss")
	assert.Contains(t, feed, "https://example.com/posts/rsa/")
	assert.Contains(t, feed, "RSA explained")

	sitemap := readFile(t, filepath.Join(out, "sitemap.xml"))
	assert.Contains(t, sitemap, "https://example.com/posts/go-slices/")
	assert.Contains(t, sitemap, "<lastmod>2023-04-02</lastmod>")

	robots := readFile(t, filepath.Join(out, "robots.txt"))
	assert.Contains(t, robots, "Sitemap: https://example.com/sitemap.xml")
}

func TestBuildIsDeterministic(t *testing.T) {
	cfg, _ := buildSite(t, false)
	out := cfg.OutputDir

	first := map[string]string{}
	require.NoError(t, filepath.Walk(out, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(out, path)
		if err != nil {
			return err
		}
		first[rel] = readFile(t, path)
		return nil
	}))

	// Rebuild into the same output dir from the unchanged tree.
	builder := stanza.NewBuilder(cfg, views.New(cfg))
	_, err := builder.Build(context.Background())
	require.NoError(t, err)

	for rel, content := range first {
		assert.Equal(t, content, readFile(t, filepath.Join(out, rel)), rel)
	}
}

func TestBuildMinify(t *testing.T) {
	cfg, _ := buildSite(t, true)

	home := readFile(t, filepath.Join(cfg.OutputDir, "index.html"))
	assert.Contains(t, home, "<html")
	assert.NotContains(t, home, "\n\n")
}
