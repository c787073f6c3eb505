package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/merenth/stanza"
	"github.com/merenth/stanza/views"
)

var (
	serveDrafts bool
	serveWatch  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the preview server",
	Long: `Serve runs the site locally: published posts, tag pages, feed and
sitemap, plus a draft preview under /drafts/.

Drafts are gated behind the author session (STANZA_AUTHOR_PASSWORD)
unless --drafts opens them, which is only sensible on a machine you
trust. With --watch the content tree is watched and the index resynced
whenever a Markdown file changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address")
	serveCmd.Flags().BoolVar(&serveDrafts, "drafts", false, "expose drafts without a session")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "resync the index on content changes")
	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadSiteConfig()
	if err != nil {
		return err
	}

	var opts []stanza.Option
	if serveDrafts {
		opts = append(opts, stanza.WithDrafts())
	}
	if serveWatch {
		opts = append(opts, stanza.WithWatch())
	}

	app := stanza.New(cfg, views.New(cfg), opts...)
	defer app.Close()
	return app.Start()
}
