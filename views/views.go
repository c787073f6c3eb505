// Package views provides the built-in templ components for stanza sites:
// a base layout plus home, post, tag, draft-preview, and error pages.
// Components are plain templ.ComponentFunc values, so a site that wants
// different markup can supply its own stanza.ViewFuncs instead.
package views

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/merenth/stanza"
	"github.com/merenth/stanza/markdown"
)

// New returns the default view set bound to the given site config.
func New(cfg stanza.SiteConfig) stanza.ViewFuncs {
	return stanza.ViewFuncs{
		Home: func(posts []stanza.Post, activeTag string, tags []string) templ.Component {
			return homePage(cfg, posts, activeTag, tags)
		},
		Post: func(post stanza.Post, related []stanza.Post) templ.Component {
			return postPage(cfg, post, related)
		},
		Tag: func(tag string, posts []stanza.Post) templ.Component {
			return tagPage(cfg, tag, posts)
		},
		Drafts: func(posts []stanza.Post, csrfToken string) templ.Component {
			return draftsPage(cfg, posts, csrfToken)
		},
		Login: func(showError bool, csrfToken string) templ.Component {
			return loginPage(cfg, showError, csrfToken)
		},
		NotFound: func() templ.Component {
			return messagePage(cfg, "404", "This page does not exist.")
		},
		ServerError: func() templ.Component {
			return messagePage(cfg, "500", "Something went wrong.")
		},
	}
}

func esc(s string) string { return html.EscapeString(s) }

// layout wraps body in the site chrome. When math is set, the KaTeX
// assets are included so $...$ spans in the body get rendered.
func layout(cfg stanza.SiteConfig, meta stanza.PageMeta, math bool, jsonLD string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := meta.Title
		if title == "" {
			title = cfg.Name
		}
		fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"/>`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"/>`+
			`<title>%s</title>`, esc(title))
		if meta.Description != "" {
			fmt.Fprintf(w, `<meta name="description" content="%s"/>`, esc(meta.Description))
		}
		fmt.Fprintf(w, `<meta property="og:title" content="%s"/>`, esc(title))
		if meta.OGType != "" {
			fmt.Fprintf(w, `<meta property="og:type" content="%s"/>`, esc(meta.OGType))
		}
		if meta.URL != "" {
			fmt.Fprintf(w, `<link rel="canonical" href="%s"/><meta property="og:url" content="%s"/>`, esc(meta.URL), esc(meta.URL))
		}
		fmt.Fprintf(w, `<link rel="alternate" type="application/rss+xml" title="%s" href="/feed.xml"/>`, esc(cfg.Name))
		io.WriteString(w, `<link rel="stylesheet" href="/public/style.css"/>`)
		if math {
			io.WriteString(w, `<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/katex@0.16.9/dist/katex.min.css"/>`+
				`<script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.9/dist/katex.min.js"></script>`+
				`<script defer src="https://cdn.jsdelivr.net/npm/katex@0.16.9/dist/contrib/auto-render.min.js" onload="renderMathInElement(document.body)"></script>`)
		}
		if jsonLD != "" {
			fmt.Fprintf(w, `<script type="application/ld+json">%s</script>`, jsonLD)
		}
		fmt.Fprintf(w, `</head><body><header class="site-header"><a class="site-title" href="/">%s</a>`+
			`<nav><a href="/">posts</a> <a href="/feed.xml">rss</a></nav></header><main>`, esc(cfg.Name))
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		footer := cfg.Author
		if footer == "" {
			footer = cfg.Name
		}
		fmt.Fprintf(w, `</main><footer class="site-footer">%s</footer></body></html>`, esc(footer))
		return nil
	})
}

func postList(posts []stanza.Post) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, `<ul class="post-list">`)
		for _, p := range posts {
			fmt.Fprintf(w, `<li><time datetime="%s">%s</time> <a href="%s">%s</a>`, esc(p.Date), esc(p.Date), esc(p.Link), esc(p.Title))
			if p.Summary != "" {
				fmt.Fprintf(w, `<p class="post-summary">%s</p>`, esc(p.Summary))
			}
			io.WriteString(w, `</li>`)
		}
		io.WriteString(w, `</ul>`)
		return nil
	})
}

func tagCloud(tags []string, active string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(tags) == 0 {
			return nil
		}
		io.WriteString(w, `<nav class="tag-cloud">`)
		for _, t := range tags {
			class := "tag"
			if t == active {
				class = "tag tag-active"
			}
			fmt.Fprintf(w, `<a class="%s" href="/tags/%s/">%s</a> `, class, esc(stanza.Slugify(t)), esc(t))
		}
		io.WriteString(w, `</nav>`)
		return nil
	})
}

func homePage(cfg stanza.SiteConfig, posts []stanza.Post, activeTag string, tags []string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := tagCloud(tags, activeTag).Render(ctx, w); err != nil {
			return err
		}
		return postList(posts).Render(ctx, w)
	})
	meta := stanza.PageMeta{
		Title:       cfg.Name,
		Description: cfg.Description,
		URL:         stanza.BuildURL(cfg.URL),
		OGType:      "website",
	}
	return layout(cfg, meta, false, stanza.WebsiteJsonLD(cfg), body)
}

func postPage(cfg stanza.SiteConfig, post stanza.Post, related []stanza.Post) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, `<article class="post"><h1>%s</h1><p class="post-meta"><time datetime="%s">%s</time>`, esc(post.Title), esc(post.Date), esc(post.Date))
		for _, t := range post.Tags {
			fmt.Fprintf(w, ` <a class="tag" href="/tags/%s/">%s</a>`, esc(stanza.Slugify(t)), esc(t))
		}
		io.WriteString(w, `</p>`)
		if post.Draft {
			io.WriteString(w, `<p class="draft-banner">Draft — not published.</p>`)
		}
		if err := markdown.Markdown(post.Content).Render(ctx, w); err != nil {
			return err
		}
		io.WriteString(w, `</article>`)
		if len(related) > 0 {
			io.WriteString(w, `<section class="related"><h2>Related posts</h2>`)
			if err := postList(related).Render(ctx, w); err != nil {
				return err
			}
			io.WriteString(w, `</section>`)
		}
		return nil
	})
	meta := stanza.PageMeta{
		Title:       post.Title,
		Description: post.Summary,
		URL:         stanza.BuildURL(cfg.URL, "posts", post.Slug),
		OGType:      "article",
	}
	return layout(cfg, meta, post.Math, stanza.BlogPostingJsonLD(post, cfg), body)
}

func tagPage(cfg stanza.SiteConfig, tag string, posts []stanza.Post) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, `<h1>Tagged &ldquo;%s&rdquo;</h1>`, esc(tag))
		return postList(posts).Render(ctx, w)
	})
	meta := stanza.PageMeta{
		Title:  tag + " — " + cfg.Name,
		URL:    stanza.BuildURL(cfg.URL, "tags", stanza.Slugify(tag)),
		OGType: "website",
	}
	return layout(cfg, meta, false, "", body)
}

func draftsPage(cfg stanza.SiteConfig, posts []stanza.Post, csrfToken string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, `<h1>Drafts</h1>`)
		if len(posts) == 0 {
			io.WriteString(w, `<p>No drafts.</p>`)
		} else if err := postList(posts).Render(ctx, w); err != nil {
			return err
		}
		fmt.Fprintf(w, `<form method="post" action="/drafts/logout/">`+
			`<input type="hidden" name="_csrf" value="%s"/>`+
			`<button type="submit">Log out</button></form>`, esc(csrfToken))
		return nil
	})
	return layout(cfg, stanza.PageMeta{Title: "Drafts — " + cfg.Name}, false, "", body)
}

func loginPage(cfg stanza.SiteConfig, showError bool, csrfToken string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, `<h1>Draft preview</h1>`)
		if showError {
			io.WriteString(w, `<p class="login-error">Wrong password.</p>`)
		}
		fmt.Fprintf(w, `<form method="post" action="/drafts/login/">`+
			`<input type="hidden" name="_csrf" value="%s"/>`+
			`<input type="password" name="password" placeholder="Password" autofocus/>`+
			`<button type="submit">Log in</button></form>`, esc(csrfToken))
		return nil
	})
	return layout(cfg, stanza.PageMeta{Title: "Login — " + cfg.Name}, false, "", body)
}

func messagePage(cfg stanza.SiteConfig, heading, text string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fmt.Fprintf(w, `<h1>%s</h1><p>%s</p><p><a href="/">Back home</a></p>`, esc(heading), esc(text))
		return nil
	})
	return layout(cfg, stanza.PageMeta{Title: heading + " — " + cfg.Name}, false, "", body)
}
