package stanza

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// frontMatter is the YAML metadata block at the top of every post file.
type frontMatter struct {
	Title   string   `yaml:"title"`
	Summary string   `yaml:"summary"`
	Date    string   `yaml:"date"`
	Tags    []string `yaml:"tags"`
	Draft   bool     `yaml:"draft"`
	Math    bool     `yaml:"math"`
}

const frontMatterFence = "---"

// SplitFrontMatter separates the YAML front matter block from the Markdown
// body. The file must start with a "---" fence; the body begins after the
// closing fence. Only a line that is exactly "---" closes the block, so
// metadata lines that merely start with dashes stay part of the front
// matter.
func SplitFrontMatter(raw string) (meta string, body string, err error) {
	raw = strings.TrimPrefix(raw, "\uFEFF")
	if !strings.HasPrefix(raw, frontMatterFence) {
		return "", "", fmt.Errorf("missing front matter fence")
	}
	rest := raw[len(frontMatterFence):]
	if strings.HasPrefix(rest, "\r\n") {
		rest = rest[2:]
	} else if strings.HasPrefix(rest, "\n") {
		rest = rest[1:]
	} else {
		return "", "", fmt.Errorf("missing front matter fence")
	}

	offset := 0
	for {
		i := strings.Index(rest[offset:], "\n"+frontMatterFence)
		if i < 0 {
			return "", "", fmt.Errorf("unterminated front matter")
		}
		lineStart := offset + i + 1
		lineEnd := strings.IndexByte(rest[lineStart:], '\n')
		var line string
		if lineEnd < 0 {
			line = rest[lineStart:]
		} else {
			line = rest[lineStart : lineStart+lineEnd]
		}
		if strings.TrimSpace(line) == frontMatterFence {
			meta = rest[:offset+i]
			if lineEnd < 0 {
				body = ""
			} else {
				body = rest[lineStart+lineEnd+1:]
			}
			return meta, body, nil
		}
		offset = lineStart
	}
}

// ParsePost parses a single post file's raw bytes. Slug and year come from
// the relative path within the content dir, e.g. "2023/rsa.md".
func ParsePost(relPath string, raw []byte) (Post, error) {
	meta, body, err := SplitFrontMatter(string(raw))
	if err != nil {
		return Post{}, fmt.Errorf("%s: %w", relPath, err)
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(meta), &fm); err != nil {
		return Post{}, fmt.Errorf("%s: parse front matter: %w", relPath, err)
	}
	if strings.TrimSpace(fm.Title) == "" {
		return Post{}, fmt.Errorf("%s: front matter has no title", relPath)
	}
	date := strings.TrimSpace(fm.Date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return Post{}, fmt.Errorf("%s: invalid date %q (want YYYY-MM-DD)", relPath, date)
	}

	slug := Slugify(strings.TrimSuffix(filepath.Base(relPath), filepath.Ext(relPath)))
	if slug == "" {
		return Post{}, fmt.Errorf("%s: file name yields an empty slug", relPath)
	}
	year := ""
	if dir := filepath.Dir(relPath); dir != "." {
		year = filepath.Base(dir)
	}

	return Post{
		Slug:    slug,
		Year:    year,
		Path:    filepath.ToSlash(relPath),
		Title:   strings.TrimSpace(fm.Title),
		Summary: strings.TrimSpace(fm.Summary),
		Date:    date,
		Tags:    FilterEmpty(fm.Tags),
		Draft:   fm.Draft,
		Math:    fm.Math,
		Link:    "/posts/" + slug + "/",
		Content: body,
	}, nil
}

// LoadTree walks the content directory and parses every Markdown file into
// a Post. Drafts are included; excluding them is the caller's concern.
// The result is sorted newest-first, ties broken by slug, so that every
// consumer sees the same deterministic order.
func LoadTree(contentDir string) ([]Post, error) {
	var posts []Post
	err := filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(contentDir, path)
		if err != nil {
			return err
		}
		post, err := ParsePost(rel, raw)
		if err != nil {
			return err
		}
		posts = append(posts, post)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load content tree: %w", err)
	}
	SortPosts(posts)
	return posts, nil
}

// SortPosts orders posts by date descending, then slug ascending.
func SortPosts(posts []Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].Date != posts[j].Date {
			return posts[i].Date > posts[j].Date
		}
		return posts[i].Slug < posts[j].Slug
	})
}
