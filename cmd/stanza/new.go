package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/spf13/cobra"

	"github.com/merenth/stanza"
)

var newDraft bool

var newCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Scaffold a post under content/<year>/",
	Long: `New creates a Markdown file for a post titled <title> under the
current year's content directory, with the front matter filled in and
today's date. The slug, and so the file name and the /posts/ URL, is
derived from the title.`,
	Args: cobra.ExactArgs(1),
	RunE: runNew,
}

func init() {
	newCmd.Flags().BoolVar(&newDraft, "draft", true, "mark the new post as a draft")
	rootCmd.AddCommand(newCmd)
}

// postTemplate is the scaffold for a fresh post.
var postTemplate = template.Must(template.New("post").Parse(`---
title: "{{.Title}}"
summary: ""
date: {{.Date}}
tags: []
draft: {{.Draft}}
---

`))

type postScaffold struct {
	Title string
	Date  string
	Draft bool
}

func runNew(cmd *cobra.Command, args []string) error {
	cfg, err := loadSiteConfig()
	if err != nil {
		return err
	}

	title := args[0]
	slug := stanza.Slugify(title)
	if slug == "" {
		return fmt.Errorf("title %q does not yield a usable slug", title)
	}

	now := time.Now()
	dir := filepath.Join(cfg.ContentDir, fmt.Sprintf("%d", now.Year()))
	path := filepath.Join(dir, slug+".md")

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	data := postScaffold{
		Title: title,
		Date:  now.Format("2006-01-02"),
		Draft: newDraft,
	}
	if err := postTemplate.Execute(f, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Printf("Preview at /drafts/%s/ once the server is running.\n", slug)
	return nil
}
