package stanza

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Severity classifies a lint issue. Errors fail the lint run; warnings
// and infos are reported only.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
	SeverityInfo  Severity = "info"
)

// Issue is a single content-hygiene finding.
type Issue struct {
	Path     string
	Severity Severity
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// LintReport collects all issues found in a content tree.
type LintReport struct {
	Issues []Issue
}

// Errors counts error-severity issues.
func (r LintReport) Errors() int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (r *LintReport) add(path string, sev Severity, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Path: path, Severity: sev, Message: fmt.Sprintf(format, args...)})
}

// reMDLink matches [text](target) links in a Markdown body.
var reMDLink = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)\)`)

// LintTree checks the content tree for the invariants a publishable tree
// must hold: parseable front matter with a non-empty title and valid
// date, unique slugs, and no dangling internal links. Unlike LoadTree it
// keeps going after the first problem so one run reports everything.
func LintTree(contentDir string) (LintReport, error) {
	var report LintReport

	type entry struct {
		path string
		post Post
		ok   bool
	}
	var entries []entry

	err := filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		rel, err := filepath.Rel(contentDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		post, ok := lintFile(&report, rel, raw)
		entries = append(entries, entry{path: rel, post: post, ok: ok})
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("lint content tree: %w", err)
	}

	// Duplicate slugs across years collide in the output tree.
	bySlug := make(map[string]string)
	slugs := make(map[string]bool)
	for _, e := range entries {
		if !e.ok {
			continue
		}
		if first, dup := bySlug[e.post.Slug]; dup {
			report.add(e.path, SeverityError, "duplicate slug %q (also used by %s)", e.post.Slug, first)
		} else {
			bySlug[e.post.Slug] = e.path
		}
		slugs[e.post.Slug] = true
	}

	// Dangling internal links.
	for _, e := range entries {
		if !e.ok {
			continue
		}
		for _, m := range reMDLink.FindAllStringSubmatch(e.post.Content, -1) {
			target := m[1]
			slug, internal := internalLinkSlug(target)
			if !internal {
				continue
			}
			if !slugs[slug] {
				report.add(e.path, SeverityError, "dangling internal link %s (no post with slug %q)", target, slug)
			}
		}
	}

	return report, nil
}

// lintFile checks one file's front matter and returns the parsed post if
// it is usable for the cross-file checks.
func lintFile(report *LintReport, rel string, raw []byte) (Post, bool) {
	meta, _, err := SplitFrontMatter(string(raw))
	if err != nil {
		report.add(rel, SeverityError, "%v", err)
		return Post{}, false
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(meta), &fm); err != nil {
		report.add(rel, SeverityError, "front matter does not parse: %v", err)
		return Post{}, false
	}
	ok := true
	if strings.TrimSpace(fm.Title) == "" {
		report.add(rel, SeverityError, "front matter has no title")
		ok = false
	}
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(fm.Date)); err != nil {
		report.add(rel, SeverityError, "invalid date %q (want YYYY-MM-DD)", fm.Date)
		ok = false
	}
	if fm.Summary == "" {
		report.add(rel, SeverityWarn, "no summary; listings and the feed will show an empty description")
	}
	if fm.Draft {
		report.add(rel, SeverityInfo, "draft: excluded from the generated site")
	}
	if !ok {
		return Post{}, false
	}
	post, err := ParsePost(rel, raw)
	if err != nil {
		report.add(rel, SeverityError, "%v", err)
		return Post{}, false
	}
	return post, true
}

// internalLinkSlug reports whether target is an internal post link and,
// if so, the slug it points at. Covers /posts/<slug>/ absolute links and
// relative references to sibling .md files.
func internalLinkSlug(target string) (string, bool) {
	target = strings.SplitN(target, "#", 2)[0]
	if target == "" {
		return "", false
	}
	if strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") {
		return "", false
	}
	if strings.HasPrefix(target, "/posts/") {
		slug := strings.Trim(strings.TrimPrefix(target, "/posts/"), "/")
		if slug == "" || strings.Contains(slug, "/") {
			return "", false
		}
		return slug, true
	}
	if strings.HasSuffix(strings.ToLower(target), ".md") {
		base := filepath.Base(target)
		return Slugify(strings.TrimSuffix(base, filepath.Ext(base))), true
	}
	return "", false
}
